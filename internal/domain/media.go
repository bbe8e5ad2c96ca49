package domain

// MediaDescriptor 是所有 adapter 必须归一化到的统一结果。
//
// 约束：
// - 一个 descriptor 只对应一个源链接；adapter 返回后不再修改
// - Videos 与 Slide 不会同时有意义地填充（识别为图集时 adapter 会清空 Videos）
// - 字段缺失允许为空；空 slice 表示“该模态不存在”
// - URL 已去除后端特有的混淆（例如 base64 路径段）
type MediaDescriptor struct {
	Title     string
	Creator   string
	Thumbnail string

	Videos []string // 优先级从高到低
	Audio  string
	Slide  []string
}

// HasMedia 是 fallback 链的接受谓词：至少一个视频或至少一张图。
func (m MediaDescriptor) HasMedia() bool {
	return len(m.Videos) > 0 || len(m.Slide) > 0
}

// IsSlideshow 表示该结果是图集（而非视频）。
func (m MediaDescriptor) IsSlideshow() bool {
	return len(m.Slide) > 0
}
