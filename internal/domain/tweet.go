package domain

// VideoHint is the opaque marker emitted once per detected video element.
const VideoHint = "video-detected"

// TweetData is the content scraped from a single tweet for one action.
// It is never persisted.
type TweetData struct {
	Text            string   `json:"text"`
	Images          []string `json:"images"`
	HasVideo        bool     `json:"hasVideo"`
	VideoHints      []string `json:"videoHints"`
	MediaShortLinks []string `json:"mediaShortLinks,omitempty"`
	TweetURL        string   `json:"tweetUrl"`
	TweetID         string   `json:"tweetId"`
	AuthorHandle    string   `json:"authorHandle"`
}

// IsEmpty reports whether there is nothing to reply to.
func (t *TweetData) IsEmpty() bool {
	return t == nil || (t.Text == "" && len(t.Images) == 0)
}

// GenerateRequest is what the content side hands to the relay.
type GenerateRequest struct {
	Mode       string   `json:"mode"`
	TweetText  string   `json:"tweetText"`
	ImageURLs  []string `json:"imageUrls"`
	HasVideo   bool     `json:"hasVideo"`
	VideoHints []string `json:"videoHints"`
}

// NewGenerateRequest builds a relay request from scraped tweet data.
func NewGenerateRequest(mode string, t *TweetData) GenerateRequest {
	req := GenerateRequest{Mode: mode}
	if t == nil {
		return req
	}
	req.TweetText = t.Text
	req.ImageURLs = t.Images
	req.HasVideo = t.HasVideo
	req.VideoHints = t.VideoHints
	return req
}

// HistoryItem is one generated reply kept in the local history.
type HistoryItem struct {
	ID          string `json:"id"`
	Timestamp   int64  `json:"timestamp"` // unix milliseconds
	PersonaName string `json:"personaName,omitempty"`
	TweetURL    string `json:"tweetUrl"`
	Mode        string `json:"mode"`
	ReplyText   string `json:"replyText"`
}

// ComposerInfo describes a reply composer found on the live page.
type ComposerInfo struct {
	Key     string `json:"key"`
	Text    string `json:"text"`
	InModal bool   `json:"inModal"`
}
