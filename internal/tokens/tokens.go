package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter reports an estimated token count for a piece of text.
type Counter func(text string) int

var (
	once sync.Once
	enc  *tiktoken.Tiktoken
)

// NewCounter returns a Counter backed by the cl100k_base encoding. The
// encoding data is loaded lazily on first use; when it is unavailable the
// counter falls back to Approx.
func NewCounter() Counter {
	return func(text string) int {
		once.Do(func() {
			enc, _ = tiktoken.GetEncoding("cl100k_base")
		})
		if enc == nil {
			return Approx(text)
		}
		return len(enc.Encode(text, nil, nil))
	}
}

// Approx estimates roughly four characters per token.
func Approx(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
