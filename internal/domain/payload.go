package domain

const (
	PayloadTypeVideo = "video"
	PayloadTypeImage = "image"
)

// Payload 是对外稳定输出（HTTP JSON / CLI stdout）的结构。
//
// - images 始终存在（视频结果为 []）
// - 图集结果不包含任何视频字段
// - music 仅在存在音频时输出
type Payload struct {
	Type        string   `json:"type"`
	Images      []string `json:"images"`
	Description string   `json:"description"`
	Creator     string   `json:"creator"`

	Videos  []string `json:"videos,omitempty"`
	Video   string   `json:"video,omitempty"`
	VideoHD string   `json:"videoHd,omitempty"`

	Music string `json:"music,omitempty"`
}

// ErrorPayload 是失败时的 JSON 形态。
type ErrorPayload struct {
	Error string `json:"error"`
}
