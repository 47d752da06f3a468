package release

import "strings"

// Placeholders understood by tag and name templates.
const (
	VersionPlaceholder = "$VERSION"
	PrefixPlaceholder  = "$PREFIX"
	TagPlaceholder     = "$TAG"
	BranchPlaceholder  = "$BRANCH"
)

// Naming carries the inputs for a draft's tag and title.
type Naming struct {
	Prefix  string
	Version string
	Branch  string
	// TagTemplate and NameTemplate override the defaults when non-empty.
	TagTemplate  string
	NameTemplate string
}

// TagName returns "<prefix><version>".
func TagName(prefix, version string) string {
	return strings.TrimSpace(prefix) + version
}

// Title returns "<tag> (<branch>)".
func Title(tag, branch string) string {
	return tag + " (" + branch + ")"
}

// Tag renders the tag, expanding TagTemplate when set.
func (n Naming) Tag() string {
	if n.TagTemplate == "" {
		return TagName(n.Prefix, n.Version)
	}
	return strings.NewReplacer(
		PrefixPlaceholder, strings.TrimSpace(n.Prefix),
		VersionPlaceholder, n.Version,
		BranchPlaceholder, n.Branch,
	).Replace(n.TagTemplate)
}

// Title renders the release name, expanding NameTemplate when set.
func (n Naming) Title() string {
	tag := n.Tag()
	if n.NameTemplate == "" {
		return Title(tag, n.Branch)
	}
	return strings.NewReplacer(
		TagPlaceholder, tag,
		PrefixPlaceholder, strings.TrimSpace(n.Prefix),
		VersionPlaceholder, n.Version,
		BranchPlaceholder, n.Branch,
	).Replace(n.NameTemplate)
}
