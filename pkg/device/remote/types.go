package remote

import (
	"epaperd/pkg/panel"
	"epaperd/pkg/proto"
)

type EmptyRequest struct {
}

type EmptyResponse struct {
}

type LoadRequest struct {
	Loader proto.Loader
	Data   []byte
}

type ModelRequest struct {
	Model panel.Model
}

// Status is served as JSON on /status.
type Status struct {
	Name    string `json:"name"`
	Parity  bool   `json:"parity"`
	Display string `json:"display"`
	Frames  int    `json:"frames"`
	Bytes   int64  `json:"bytes"`
}
