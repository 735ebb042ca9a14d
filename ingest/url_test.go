package ingest_test

import (
	"testing"

	"ewintr.nl/shortscout/ingest"
	"ewintr.nl/shortscout/model"
	"github.com/stretchr/testify/assert"
)

func TestExtractVideoID(t *testing.T) {
	for _, tc := range []struct {
		name   string
		url    string
		exp    model.YoutubeVideoID
		expErr bool
	}{
		{name: "shorts", url: "https://www.youtube.com/shorts/dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{name: "shorts with query", url: "https://youtube.com/shorts/dQw4w9WgXcQ?feature=share", exp: "dQw4w9WgXcQ"},
		{name: "short link", url: "https://youtu.be/dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{name: "watch", url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{name: "watch with more params", url: "https://m.youtube.com/watch?list=abc&v=dQw4w9WgXcQ&t=4", exp: "dQw4w9WgXcQ"},
		{name: "embed", url: "https://www.youtube.com/embed/dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{name: "no scheme", url: "youtu.be/dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{name: "surrounding space", url: "  https://youtu.be/dQw4w9WgXcQ \n", exp: "dQw4w9WgXcQ"},
		{name: "empty", url: "", expErr: true},
		{name: "not youtube", url: "https://vimeo.com/shorts/dQw4w9WgXcQ", expErr: true},
		{name: "id too short", url: "https://youtu.be/dQw4w9", expErr: true},
		{name: "bad characters", url: "https://youtu.be/dQw4w9Wg!cQ", expErr: true},
		{name: "channel page", url: "https://www.youtube.com/@someone", expErr: true},
		{name: "other scheme", url: "ftp://youtube.com/watch?v=dQw4w9WgXcQ", expErr: true},
		{name: "garbage", url: "not a url at all", expErr: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			act, err := ingest.ExtractVideoID(tc.url)
			if tc.expErr {
				assert.True(t, ingest.IsValidation(err), "got %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.exp, act)
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	for _, url := range []string{
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	} {
		act, err := ingest.NormalizeURL(url)
		assert.NoError(t, err)
		assert.Equal(t, "https://www.youtube.com/shorts/dQw4w9WgXcQ", act)
	}
}
