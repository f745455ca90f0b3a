package content

import (
	"sort"

	"golang.org/x/text/language"
)

// LanguageMap maps BCP-47 language tags to text.
type LanguageMap map[string]string

// Resolve returns the entry best matching the preferred languages.
// It falls back to the "und" entry, then to the first entry by tag order.
func (m LanguageMap) Resolve(prefs ...language.Tag) (string, bool) {
	if len(m) == 0 {
		return "", false
	}

	keys := make([]string, 0, len(m))
	tags := make([]language.Tag, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	usable := keys[:0:0]
	for _, k := range keys {
		if k == "und" {
			continue
		}
		tag, err := language.Parse(k)
		if err != nil {
			continue
		}
		usable = append(usable, k)
		tags = append(tags, tag)
	}

	if len(prefs) > 0 && len(tags) > 0 {
		_, idx, conf := language.NewMatcher(tags).Match(prefs...)
		if conf != language.No {
			return m[usable[idx]], true
		}
	}

	if v, ok := m["und"]; ok {
		return v, true
	}
	return m[keys[0]], true
}
