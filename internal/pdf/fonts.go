package pdf

import (
	"os"

	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/textfit"
)

const (
	fontFamilyLatin = "latin"
	fontFamilyCJK   = "cjk"
)

// FontPaths are the TrueType files used for inserted text
type FontPaths struct {
	Latin string
	CJK   string
}

// common system locations of .ttf files; collections (.ttc) are not supported
var (
	latinFontCandidates = []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
		"/Library/Fonts/Arial.ttf",
		"/System/Library/Fonts/Supplemental/Arial.ttf",
		`C:\Windows\Fonts\arial.ttf`,
	}
	cjkFontCandidates = []string{
		"/usr/share/fonts/truetype/droid/DroidSansFallbackFull.ttf",
		"/usr/share/fonts/truetype/arphic-gkai00mp/gkai00mp.ttf",
		"/Library/Fonts/Arial Unicode.ttf",
		"/System/Library/Fonts/Supplemental/Arial Unicode.ttf",
		`C:\Windows\Fonts\simhei.ttf`,
		`C:\Windows\Fonts\kaiu.ttf`,
	}
)

// ResolveFonts fills empty paths from the system font locations
func ResolveFonts(paths FontPaths) FontPaths {
	if paths.Latin == "" {
		paths.Latin = firstExisting(latinFontCandidates)
	}
	if paths.CJK == "" {
		paths.CJK = firstExisting(cjkFontCandidates)
	}
	return paths
}

func firstExisting(candidates []string) string {
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

// loadMeasurers parses the fonts for layout. A font that fails to parse is
// dropped with a warning and layout falls back to estimated widths.
func loadMeasurers(paths FontPaths) textfit.FontSet {
	var fs textfit.FontSet
	if paths.Latin != "" {
		if m, err := textfit.LoadTrueType(paths.Latin); err != nil {
			logger.Warn("latin font unusable for layout", logger.String("path", paths.Latin), logger.Err(err))
		} else {
			fs.Latin = m
		}
	}
	if paths.CJK != "" {
		if m, err := textfit.LoadTrueType(paths.CJK); err != nil {
			logger.Warn("CJK font unusable for layout", logger.String("path", paths.CJK), logger.Err(err))
		} else {
			fs.CJK = m
		}
	}
	return fs
}
