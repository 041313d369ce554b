package chat

import (
	"regexp"
)

var (
	mentionPattern = regexp.MustCompile(`@(\w+)`)
	urlPattern     = regexp.MustCompile(`https?://[^\s]+`)
)

const (
	previewDescription = "This is a simulated description for the link you shared. In a real app, this would be fetched from the website."
	previewImage       = "https://via.placeholder.com/150/1a202c/FFFFFF?text=Preview"
)

// ParseMentions returns the ids of users whose username appears as an
// @mention in content. Matching is exact and case-sensitive; each user is
// listed once, in order of first mention.
func ParseMentions(content string, users []User) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	byName := make(map[string]string, len(users))
	for _, u := range users {
		if _, ok := byName[u.Username]; !ok {
			byName[u.Username] = u.ID
		}
	}

	var ids []string
	seen := make(map[string]bool)
	for _, m := range matches {
		id, ok := byName[m[1]]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// DetectLinkPreview builds a simulated preview for the first URL in content
func DetectLinkPreview(content string) *LinkPreview {
	url := urlPattern.FindString(content)
	if url == "" {
		return nil
	}
	return &LinkPreview{
		URL:         url,
		Title:       "Preview for " + url,
		Description: previewDescription,
		Image:       previewImage,
	}
}
