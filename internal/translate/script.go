package translate

import (
	"strings"

	"github.com/longbridgeapp/opencc"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"pdf-layout-translator/internal/logger"
)

// ScriptNormalizer folds compatibility and full-width forms and converts
// simplified Chinese to the traditional standard of the target language
type ScriptNormalizer struct {
	targetLang string
	converter  *opencc.OpenCC
	profile    string
}

// ConversionProfile returns the OpenCC profile for a target language, or ""
// when the target is not written in traditional Chinese script
func ConversionProfile(targetLang string) string {
	tag, err := language.Parse(targetLang)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	if base.String() != "zh" {
		return ""
	}
	if script, _ := tag.Script(); script.String() != "Hant" {
		return ""
	}
	region, conf := tag.Region()
	if conf != language.Exact {
		return "s2t"
	}
	switch region.String() {
	case "TW":
		return "s2tw"
	case "HK", "MO":
		return "s2hk"
	}
	return "s2t"
}

// NewScriptNormalizer creates the normalizer for targetLang. A converter
// that cannot be loaded disables conversion with a warning.
func NewScriptNormalizer(targetLang string) *ScriptNormalizer {
	n := &ScriptNormalizer{targetLang: targetLang, profile: ConversionProfile(targetLang)}
	if n.profile == "" {
		return n
	}

	converter, err := opencc.New(n.profile)
	if err != nil {
		logger.Warn("script conversion unavailable",
			logger.String("profile", n.profile),
			logger.Err(err))
		n.profile = ""
		return n
	}
	n.converter = converter
	return n
}

// Profile returns the active OpenCC profile, "" when conversion is off
func (n *ScriptNormalizer) Profile() string {
	return n.profile
}

// Normalize applies NFKC, folds full-width forms to half-width and converts
// the script
func (n *ScriptNormalizer) Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = width.Fold.String(text)

	if n.converter != nil {
		converted, err := n.converter.Convert(text)
		if err != nil {
			logger.Warn("script conversion failed",
				logger.String("profile", n.profile),
				logger.Err(err))
		} else {
			text = converted
		}
	}
	return strings.TrimSpace(text)
}
