package manifest

import "strings"

// ImageReference is a normalized (repository, tag) pair.
type ImageReference struct {
	Repository string
	Tag        string
}

// String renders back "repo:tag".
func (r ImageReference) String() string {
	return r.Repository + ":" + r.Tag
}

// ParseImageReference splits on the LAST ":" (a repository may itself
// contain ":" only via a port-qualified host, which this runtime does not
// target, but keeping the split on the last colon matches upstream
// tooling and costs nothing). A bare name with no slash is expanded to
// "library/<name>"; a slashed name is kept verbatim. A missing tag
// defaults to "latest".
func ParseImageReference(ref string) ImageReference {
	repo, tag := ref, "latest"
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		repo, tag = ref[:i], ref[i+1:]
	}
	if !strings.Contains(repo, "/") {
		repo = "library/" + repo
	}
	return ImageReference{Repository: repo, Tag: tag}
}
