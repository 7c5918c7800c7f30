package proposals

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 2000
	maxCommentLength     = 500
	maxImageURLLength    = 512
	maxNameLength        = 320
	maxIdentifierLength  = 190
)

// imagePolicy keeps an <img src> only when the URL parses and uses http or https.
var imagePolicy = func() *bluemonday.Policy {
	policy := bluemonday.NewPolicy()
	policy.AllowURLSchemes("http", "https")
	policy.RequireParseableURLs(true)
	policy.AllowAttrs("src").OnElements("img")
	return policy
}()

// requireText trims surrounding whitespace and otherwise keeps the text as
// submitted; escaping belongs to whoever renders it.
func requireText(field, rawInput string, maxLength int) (string, error) {
	if !utf8.ValidString(rawInput) {
		return "", fmt.Errorf("%w: %s contains invalid characters", ErrInvalidInput, field)
	}
	value := strings.TrimSpace(rawInput)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if utf8.RuneCountInString(value) > maxLength {
		return "", fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidInput, field, maxLength)
	}
	return value, nil
}

func optionalImageURL(field, rawInput string) (string, error) {
	value := strings.TrimSpace(rawInput)
	if value == "" {
		return "", nil
	}
	if len(value) > maxImageURLLength {
		return "", fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidInput, field, maxImageURLLength)
	}
	sanitized := imagePolicy.Sanitize(`<img src="` + html.EscapeString(value) + `">`)
	if !strings.Contains(sanitized, "src=") {
		return "", fmt.Errorf("%w: %s must be an http or https url", ErrInvalidInput, field)
	}
	return value, nil
}

func requireIdentifier(field, rawInput string) (string, error) {
	value := strings.TrimSpace(rawInput)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if len(value) > maxIdentifierLength {
		return "", fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidInput, field, maxIdentifierLength)
	}
	return value, nil
}

func normalizeNewProposal(input NewProposal) (NewProposal, error) {
	title, err := requireText("title", input.Title, maxTitleLength)
	if err != nil {
		return NewProposal{}, err
	}
	description, err := requireText("description", input.Description, maxDescriptionLength)
	if err != nil {
		return NewProposal{}, err
	}
	category, ok := CanonicalCategory(input.Category)
	if !ok {
		if strings.TrimSpace(input.Category) == "" {
			return NewProposal{}, fmt.Errorf("%w: category is required", ErrInvalidInput)
		}
		return NewProposal{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, input.Category)
	}
	creatorName, err := requireText("creator name", input.CreatorName, maxNameLength)
	if err != nil {
		return NewProposal{}, err
	}
	creatorID, err := requireIdentifier("creator id", input.CreatorID)
	if err != nil {
		return NewProposal{}, err
	}
	imageURL, err := optionalImageURL("image url", input.ImageURL)
	if err != nil {
		return NewProposal{}, err
	}
	return NewProposal{
		Title:       title,
		Description: description,
		Category:    category,
		CreatorName: creatorName,
		CreatorID:   creatorID,
		ImageURL:    imageURL,
	}, nil
}

func normalizeNewComment(input NewComment) (NewComment, error) {
	content, err := requireText("content", input.Content, maxCommentLength)
	if err != nil {
		return NewComment{}, err
	}
	userID, err := requireIdentifier("user id", input.UserID)
	if err != nil {
		return NewComment{}, err
	}
	userName, err := requireText("user name", input.UserName, maxNameLength)
	if err != nil {
		return NewComment{}, err
	}
	avatar, err := optionalImageURL("user avatar", input.UserAvatar)
	if err != nil {
		return NewComment{}, err
	}
	return NewComment{
		UserID:     userID,
		UserName:   userName,
		UserAvatar: avatar,
		Content:    content,
	}, nil
}
