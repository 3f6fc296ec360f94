package protocol

// Start may carry the client's protocol version. An empty payload or v 0
// means the current version.
type Start struct {
	V int `json:"v,omitempty"`
}
