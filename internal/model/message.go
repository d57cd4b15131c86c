package model

type Platform string

const (
	Instagram Platform = "instagram"
	TikTok    Platform = "tiktok"
	YouTube   Platform = "youtube"
	Twitter   Platform = "twitter"
	Unknown   Platform = "unknown"
)

// Message is a received SMS. Only Used changes after insert.
type Message struct {
	ID            int64
	Phone         string
	Message       string
	Timestamp     string
	ExtractedCode *string
	Platform      Platform
	Used          bool
}

func (m Message) HasCode() bool {
	return m.ExtractedCode != nil && *m.ExtractedCode != ""
}
