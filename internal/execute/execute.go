// Package execute defines the plan-execution contract: run translated
// backend plans and return one QueryResult per plan, in plan order.
// The search and doc subpackages each provide one concrete
// implementation.
package execute

import (
	"context"

	"github.com/gcbaptista/nlq-query-builder/model"
)

// Executor runs one backend plan and reports its result. sliceIndex
// identifies the plan's position in the originating FilterIR, carried
// through into any BackendError so a per-slice failure can be
// attributed. The Orchestrator is responsible for fanning calls out
// across slices and gathering results back in slice order;
// ExecuteOne itself never
// returns a Go error: a failed plan surfaces as
// QueryResult{Success:false, Error:...} so one slice's failure never
// aborts the others.
type Executor interface {
	ExecuteOne(ctx context.Context, sliceIndex int, plan model.Plan) model.QueryResult
}
