package template

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Kind selects a template.
type Kind string

const (
	Educational Kind = "educational"
	Corporate   Kind = "corporate"
	Minimal     Kind = "minimal"
)

// Kinds lists every template kind.
func Kinds() []Kind {
	return []Kind{Educational, Corporate, Minimal}
}

// ParseKind accepts a kind name in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown template %q", ErrInvalidProps, s)
}

// AccentPosition places the accent circle of the minimal template.
type AccentPosition string

const (
	AccentTop    AccentPosition = "top"
	AccentBottom AccentPosition = "bottom"
	AccentCenter AccentPosition = "center"
)

// ErrInvalidProps is returned for a prop bundle that does not fit its kind.
var ErrInvalidProps = errors.New("invalid template props")

// Base holds the props shared by every template.
type Base struct {
	Title              string  `yaml:"title" json:"title"`
	Subtitle           string  `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	PrimaryColor       string  `yaml:"primary_color" json:"primaryColor"`
	BackgroundColor    string  `yaml:"background_color,omitempty" json:"backgroundColor,omitempty"`
	LogoURL            string  `yaml:"logo_url,omitempty" json:"logoUrl,omitempty"`
	BackgroundImageURL string  `yaml:"background_image_url,omitempty" json:"backgroundImageUrl,omitempty"`
	BackgroundVideoURL string  `yaml:"background_video_url,omitempty" json:"backgroundVideoUrl,omitempty"`
	AudioURL           string  `yaml:"audio_url,omitempty" json:"audioUrl,omitempty"`
	AudioVolume        float64 `yaml:"audio_volume" json:"audioVolume"`
	AudioStartFrom     int     `yaml:"audio_start_from" json:"audioStartFrom"`
	CallToActionURL    string  `yaml:"call_to_action_url,omitempty" json:"callToActionUrl,omitempty"`
}

type EducationalProps struct {
	LessonNumber int    `yaml:"lesson_number" json:"lessonNumber"`
	Subject      string `yaml:"subject" json:"subject"`
}

type CorporateProps struct {
	CompanyName string `yaml:"company_name" json:"companyName"`
	Tagline     string `yaml:"tagline" json:"tagline"`
}

type MinimalProps struct {
	AccentPosition AccentPosition `yaml:"accent_position" json:"accentPosition"`
}

// Props is a tagged union: Kind names which one of the payload pointers
// is set.
type Props struct {
	Kind        Kind `yaml:"kind" json:"kind"`
	Base        `yaml:",inline"`
	Educational *EducationalProps `yaml:"educational,omitempty" json:"educational,omitempty"`
	Corporate   *CorporateProps   `yaml:"corporate,omitempty" json:"corporate,omitempty"`
	Minimal     *MinimalProps     `yaml:"minimal,omitempty" json:"minimal,omitempty"`
}

// DefaultProps returns a valid bundle for kind with editor defaults.
func DefaultProps(kind Kind) Props {
	p := Props{
		Kind: kind,
		Base: Base{
			Title:        "Your Title Here",
			Subtitle:     "Your subtitle",
			PrimaryColor: "#3B82F6",
			AudioVolume:  0.5,
		},
	}
	switch kind {
	case Educational:
		p.Educational = &EducationalProps{LessonNumber: 1, Subject: "Subject"}
	case Corporate:
		p.Corporate = &CorporateProps{CompanyName: "Company", Tagline: "Tagline"}
	case Minimal:
		p.Minimal = &MinimalProps{AccentPosition: AccentCenter}
	}
	return p
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Validate checks that the payload matches Kind and that the shared fields
// are well formed. All problems are reported together.
func (p Props) Validate() error {
	var problems []string

	set := 0
	for _, ok := range []bool{p.Educational != nil, p.Corporate != nil, p.Minimal != nil} {
		if ok {
			set++
		}
	}
	if set > 1 {
		problems = append(problems, "more than one template payload set")
	}

	switch p.Kind {
	case Educational:
		if p.Educational == nil {
			problems = append(problems, "educational payload missing")
		} else if p.Educational.LessonNumber < 0 {
			problems = append(problems, "lesson number must not be negative")
		}
	case Corporate:
		if p.Corporate == nil {
			problems = append(problems, "corporate payload missing")
		}
	case Minimal:
		if p.Minimal == nil {
			problems = append(problems, "minimal payload missing")
		} else {
			switch p.Minimal.AccentPosition {
			case AccentTop, AccentBottom, AccentCenter, "":
			default:
				problems = append(problems, fmt.Sprintf("accent position %q", p.Minimal.AccentPosition))
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown template %q", p.Kind))
	}

	b := p.Base
	if !hexColor.MatchString(b.PrimaryColor) {
		problems = append(problems, fmt.Sprintf("primary color %q is not #RRGGBB", b.PrimaryColor))
	}
	if b.BackgroundColor != "" && !hexColor.MatchString(b.BackgroundColor) {
		problems = append(problems, fmt.Sprintf("background color %q is not #RRGGBB", b.BackgroundColor))
	}
	if b.AudioVolume < 0 || b.AudioVolume > 1 {
		problems = append(problems, fmt.Sprintf("audio volume %g outside [0,1]", b.AudioVolume))
	}
	if b.AudioStartFrom < 0 {
		problems = append(problems, "audio start frame must not be negative")
	}
	if b.CallToActionURL != "" {
		if u, err := url.Parse(b.CallToActionURL); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("call to action %q is not an absolute URL", b.CallToActionURL))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProps, strings.Join(problems, "; "))
	}
	return nil
}
