package dataset

import "github.com/giesekow/go-dcmnet/tag"

// DecodeOption configures a Decoder.
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	validateVR      bool
	skipPixelData   bool
	maxInflatedSize int64
	stopAt          *tag.Tag
}

// StopAtTag ends decoding before the first top-level element whose tag is
// t or greater. The rest of the input is ignored.
func StopAtTag(t tag.Tag) DecodeOption {
	return func(o *decodeOptions) { o.stopAt = &t }
}

// DefaultMaxInflatedSize caps a deflated data set after inflation unless
// MaxInflatedSize says otherwise.
const DefaultMaxInflatedSize = 1 << 30

// MaxInflatedSize caps the size of a deflated data set after inflation.
// Larger data sets fail with ErrCorruptStream. n <= 0 restores the default.
func MaxInflatedSize(n int64) DecodeOption {
	return func(o *decodeOptions) { o.maxInflatedSize = n }
}

// ValidateVR makes the decoder compare explicit VRs against the dictionary
// and log disagreements. The VR found in the stream is kept either way.
func ValidateVR() DecodeOption {
	return func(o *decodeOptions) { o.validateVR = true }
}

// SkipPixelData drops (7FE0,0010) instead of loading it.
func SkipPixelData() DecodeOption {
	return func(o *decodeOptions) { o.skipPixelData = true }
}

// LengthPolicy decides how sequences and items are delimited on encode.
type LengthPolicy int

const (
	// KeepLengths writes each sequence the way Element.UndefinedLength says.
	KeepLengths LengthPolicy = iota
	// DefinedLengths writes byte counts for every sequence and item. Some
	// peers reject undefined lengths.
	DefinedLengths
	// UndefinedLengths delimits every sequence and item.
	UndefinedLengths
)

// EncodeOption configures an Encoder.
type EncodeOption func(*encodeOptions)

type encodeOptions struct {
	lengthPolicy  LengthPolicy
	allowUnsorted bool
}

// WithLengthPolicy sets how sequences are delimited. Encapsulated pixel data
// is always written with undefined length.
func WithLengthPolicy(p LengthPolicy) EncodeOption {
	return func(o *encodeOptions) { o.lengthPolicy = p }
}

// AllowUnsortedTags turns off the ascending tag order check.
func AllowUnsortedTags() EncodeOption {
	return func(o *encodeOptions) { o.allowUnsorted = true }
}
