package model

// Document is a flexible map representing one result record, whether it
// came back from a search-engine hit or a document-store record. Field
// access is by string key and depends on the backing schema.
type Document map[string]interface{}

// GetDocumentID returns the documentID if it's stored under the
// "documentID" key.
func (d Document) GetDocumentID() (string, bool) {
	if id, ok := d["documentID"]; ok {
		if str, sok := id.(string); sok && str != "" {
			return str, true
		}
	}
	return "", false
}
