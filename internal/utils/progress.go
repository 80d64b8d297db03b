package utils

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Standard progress bar descriptions
const (
	DescScanning = "Scanning layers"
	DescLoading  = "Loading manifest"
)

// NewProgressBar creates a consistently styled progress bar writing to w.
//
// A nil writer yields a silent bar so callers never need to nil-check.
// Use total -1 for an indeterminate spinner.
//
// Example:
//
//	bar := utils.NewProgressBar(len(projects), utils.DescScanning, os.Stderr)
//	defer bar.Finish()
func NewProgressBar(total int, description string, w io.Writer) *progressbar.ProgressBar {
	if w == nil {
		w = io.Discard
	}

	opts := []progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	}

	if total < 0 {
		opts = append(opts,
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		)
	} else {
		opts = append(opts, progressbar.OptionSetPredictTime(false))
	}

	return progressbar.NewOptions(total, opts...)
}
