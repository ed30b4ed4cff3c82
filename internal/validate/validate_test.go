package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/inspectmedia/internal/media"
)

func codes(res Result) []string {
	out := make([]string, len(res.Violations))
	for i, v := range res.Violations {
		out[i] = v.Code
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	v := New()

	for _, mime := range DefaultMIMETypes {
		res := v.Validate(media.AssetInfo{Filename: "brakes.mp4", MIMEType: mime, Size: 5 << 20})
		assert.True(t, res.OK, mime)
		assert.Empty(t, res.Violations, mime)
	}

	for _, ext := range DefaultExtensions {
		res := v.Validate(media.AssetInfo{Filename: "tank." + strings.ToUpper(ext), MIMEType: "video/mp4", Size: 2048})
		assert.True(t, res.OK, ext)
	}
}

func TestValidate_Boundaries(t *testing.T) {
	v := New()
	info := func(size int64) media.AssetInfo {
		return media.AssetInfo{Filename: "a.mp4", MIMEType: "video/mp4", Size: size}
	}

	assert.True(t, v.Validate(info(MinSize)).OK)
	assert.True(t, v.Validate(info(MaxSize)).OK)
	assert.Equal(t, []string{CodeTooSmall}, codes(v.Validate(info(MinSize-1))))
	assert.Equal(t, []string{CodeTooLarge}, codes(v.Validate(info(MaxSize+1))))
	assert.Equal(t, []string{CodeTooSmall}, codes(v.Validate(info(0))))
}

func TestValidate_TooSmallOnly(t *testing.T) {
	res := New().Validate(media.AssetInfo{Filename: "cab.mp4", MIMEType: "video/mp4", Size: 500})

	require.False(t, res.OK)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, CodeTooSmall, res.Violations[0].Code)
	assert.Contains(t, res.Violations[0].Message, "file too small")
	assert.Contains(t, res.Violations[0].Message, "500 B")
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	longName := strings.Repeat("x", 300) + ".exe"
	res := New().Validate(media.AssetInfo{Filename: longName, MIMEType: "application/x-msdownload", Size: 200 << 20})

	require.False(t, res.OK)
	assert.Equal(t, []string{CodeTooLarge, CodeMIMEType, CodeExtension, CodeFilenameTooLong}, codes(res))
	assert.Len(t, res.Messages(), 4)
}

func TestValidate_EmptyMetadata(t *testing.T) {
	res := New().Validate(media.AssetInfo{})

	assert.False(t, res.OK)
	assert.Equal(t, []string{CodeTooSmall, CodeMIMEType, CodeExtension}, codes(res))
	assert.Contains(t, res.Violations[1].Message, "(none)")
}

func TestValidate_FilenameLengthCountsCharacters(t *testing.T) {
	v := New()
	name := strings.Repeat("ç", 251) + ".mp4" // 255 runes, more bytes
	assert.True(t, v.Validate(media.AssetInfo{Filename: name, MIMEType: "video/mp4", Size: 4096}).OK)

	name = strings.Repeat("ç", 252) + ".mp4"
	assert.Equal(t, []string{CodeFilenameTooLong}, codes(v.Validate(media.AssetInfo{Filename: name, MIMEType: "video/mp4", Size: 4096})))
}

func TestValidate_MIMECaseInsensitive(t *testing.T) {
	assert.True(t, New().Validate(media.AssetInfo{Filename: "a.mov", MIMEType: "Video/QuickTime", Size: 4096}).OK)
}

func TestCheck(t *testing.T) {
	v := New()

	require.NoError(t, v.Check(media.AssetInfo{Filename: "a.webm", MIMEType: "video/webm", Size: 4096}))

	err := v.Check(media.AssetInfo{Filename: "a.txt", MIMEType: "text/plain", Size: 10})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Result.Violations, 3)
	assert.Contains(t, err.Error(), "file too small")
	assert.Contains(t, err.Error(), "unsupported file extension .txt")
}

func TestOptions(t *testing.T) {
	v := New(
		WithSizeRange(10, 20),
		WithMIMETypes("video/mp4"),
		WithExtensions("mp4"),
	)

	assert.True(t, v.Validate(media.AssetInfo{Filename: "a.mp4", MIMEType: "video/mp4", Size: 15}).OK)
	assert.Equal(t, []string{CodeTooLarge, CodeMIMEType, CodeExtension},
		codes(v.Validate(media.AssetInfo{Filename: "a.webm", MIMEType: "video/webm", Size: 21})))

	// Invalid overrides are ignored.
	d := New(WithSizeRange(0, 5), WithMIMETypes(), WithExtensions())
	assert.Equal(t, MinSize, d.minSize)
	assert.Equal(t, DefaultMIMETypes, d.mimeTypes)
}
