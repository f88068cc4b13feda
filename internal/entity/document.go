package entity

// UploadedDocument is one rate confirmation as received from the caller.
type UploadedDocument struct {
	Filename  string `json:"filename"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"-"`
}

// RenderedPage is a single raster page. Index is 1-based and follows source order.
type RenderedPage struct {
	Index     int    `json:"index"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"-"`
}
