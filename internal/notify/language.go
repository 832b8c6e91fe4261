package notify

import (
	"path"
	"strings"

	"github.com/simplesurance/pushcord/internal/orderedmap"
)

// UnknownLanguage is the name shown when no changed file matches the
// language table.
const UnknownLanguage = "Unknown"

// defaultIconSlug is the icon used for UnknownLanguage.
const defaultIconSlug = "default"

type Language struct {
	Name string
	// Icon is the name of the icon image, without extension.
	Icon string
}

// LanguageTable maps file extensions to programming languages.
// It is read-only after construction.
type LanguageTable struct {
	byExt map[string]Language
}

// NewLanguageTable creates a table from a map of file extensions, including
// the leading dot (".go"), to languages. Extensions are matched case
// insensitive.
func NewLanguageTable(m map[string]Language) *LanguageTable {
	t := LanguageTable{byExt: make(map[string]Language, len(m))}

	for ext, lang := range m {
		t.byExt[normalizeExt(ext)] = lang
	}

	return &t
}

// DefaultLanguageTable returns a table containing common programming
// languages.
func DefaultLanguageTable() *LanguageTable {
	return NewLanguageTable(defaultLanguages)
}

// WithOverrides returns a copy of the table in which the extensions in
// overrides map to the given language names. The icon of a known language
// name is reused.
func (t *LanguageTable) WithOverrides(overrides map[string]string) *LanguageTable {
	m := make(map[string]Language, len(t.byExt)+len(overrides))
	icons := map[string]string{}

	for ext, lang := range t.byExt {
		m[ext] = lang

		// multiple icons can exist per language, pick one deterministically
		if icon, exists := icons[lang.Name]; !exists || lang.Icon < icon {
			icons[lang.Name] = lang.Icon
		}
	}

	for ext, name := range overrides {
		icon, exists := icons[name]
		if !exists {
			icon = strings.ToLower(name)
		}

		m[ext] = Language{Name: name, Icon: icon}
	}

	return NewLanguageTable(m)
}

// Lookup returns the language of the file at path p.
func (t *LanguageTable) Lookup(p string) (ext string, lang Language, found bool) {
	ext = normalizeExt(path.Ext(p))
	if ext == "" {
		return "", Language{}, false
	}

	lang, found = t.byExt[ext]
	return ext, lang, found
}

// LanguageUsage is the result of tallying file extensions.
type LanguageUsage struct {
	Language  Language
	Extension string
	// Count is the number of files with Extension.
	Count int
}

// IsUnknown returns true if no file matched the language table.
func (u *LanguageUsage) IsUnknown() bool {
	return u.Count == 0
}

// MostUsed counts the extensions of the files in fileLists that are listed
// in the table and returns the language of the most frequent one.
// When multiple extensions have the same count, the one that was
// encountered first wins.
// If no file matches, a LanguageUsage for UnknownLanguage with a count of 0
// is returned.
func (t *LanguageTable) MostUsed(fileLists ...[]string) *LanguageUsage {
	tally := orderedmap.New[string, int]()

	for _, files := range fileLists {
		for _, f := range files {
			ext, _, found := t.Lookup(f)
			if !found {
				continue
			}

			tally.Set(ext, tally.Get(ext)+1)
		}
	}

	result := LanguageUsage{
		Language: Language{Name: UnknownLanguage, Icon: defaultIconSlug},
	}

	tally.Foreach(func(ext string, cnt int) bool {
		if cnt > result.Count {
			result.Count = cnt
			result.Extension = ext
			result.Language = t.byExt[ext]
		}
		return true
	})

	return &result
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return ext
}

// IconResolver returns the URL of the icon image with the given name.
// An empty string means no icon is shown.
type IconResolver func(icon string) string

// TemplateIconResolver returns an IconResolver that serves icons from
// <baseURL>/icons/<name>.png.
// If baseURL is empty, no icons are resolved.
func TemplateIconResolver(baseURL string) IconResolver {
	baseURL = strings.TrimRight(baseURL, "/")

	return func(icon string) string {
		if baseURL == "" || icon == "" {
			return ""
		}

		return baseURL + "/icons/" + icon + ".png"
	}
}

var defaultLanguages = map[string]Language{
	".c":     {Name: "C", Icon: "c"},
	".h":     {Name: "C", Icon: "c"},
	".cc":    {Name: "C++", Icon: "cplusplus"},
	".cpp":   {Name: "C++", Icon: "cplusplus"},
	".hpp":   {Name: "C++", Icon: "cplusplus"},
	".cs":    {Name: "C#", Icon: "csharp"},
	".css":   {Name: "CSS", Icon: "css3"},
	".scss":  {Name: "SCSS", Icon: "sass"},
	".dart":  {Name: "Dart", Icon: "dart"},
	".ex":    {Name: "Elixir", Icon: "elixir"},
	".exs":   {Name: "Elixir", Icon: "elixir"},
	".go":    {Name: "Go", Icon: "go"},
	".hs":    {Name: "Haskell", Icon: "haskell"},
	".html":  {Name: "HTML", Icon: "html5"},
	".java":  {Name: "Java", Icon: "java"},
	".js":    {Name: "JavaScript", Icon: "javascript"},
	".mjs":   {Name: "JavaScript", Icon: "javascript"},
	".jsx":   {Name: "JavaScript", Icon: "react"},
	".json":  {Name: "JSON", Icon: "json"},
	".kt":    {Name: "Kotlin", Icon: "kotlin"},
	".lua":   {Name: "Lua", Icon: "lua"},
	".md":    {Name: "Markdown", Icon: "markdown"},
	".php":   {Name: "PHP", Icon: "php"},
	".py":    {Name: "Python", Icon: "python"},
	".rb":    {Name: "Ruby", Icon: "ruby"},
	".rs":    {Name: "Rust", Icon: "rust"},
	".scala": {Name: "Scala", Icon: "scala"},
	".sh":    {Name: "Shell", Icon: "bash"},
	".sql":   {Name: "SQL", Icon: "sql"},
	".swift": {Name: "Swift", Icon: "swift"},
	".ts":    {Name: "TypeScript", Icon: "typescript"},
	".tsx":   {Name: "TypeScript", Icon: "react"},
	".vue":   {Name: "Vue", Icon: "vuejs"},
	".yaml":  {Name: "YAML", Icon: "yaml"},
	".yml":   {Name: "YAML", Icon: "yaml"},
}
