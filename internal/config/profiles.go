package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/enough/internal/domain"
	"github.com/eliteGoblin/enough/internal/infra"
)

// ProfileFileName is the profiles file looked up by FindProfilesFile.
const ProfileFileName = "enough.yaml"

// ProfileSpec is one profile as written in the profiles file.
type ProfileSpec struct {
	Duration Duration `yaml:"duration" validate:"gt=0"`
	Websites []string `yaml:"websites,omitempty" validate:"dive,web_url"`
	Apps     []string `yaml:"apps,omitempty" validate:"dive,app_exists"`
}

// Profile returns the domain form of p.
func (p ProfileSpec) Profile() domain.Profile {
	return domain.Profile{
		Duration: p.Duration.Std(),
		Websites: append([]string(nil), p.Websites...),
		Apps:     append([]string(nil), p.Apps...),
	}
}

// Profiles is the parsed profiles file.
type Profiles struct {
	DefaultProfile string                 `yaml:"default-profile,omitempty"`
	Profiles       map[string]ProfileSpec `yaml:"profiles" validate:"required,min=1,dive,keys,required,endkeys"`

	// Path is the file the profiles were read from.
	Path string `yaml:"-"`
}

// FindProfilesFile returns the first existing candidate: ./enough.yaml,
// <home>/.config/enough/enough.yaml, <home>/.config/enough.yaml.
func FindProfilesFile(home string) (string, error) {
	candidates := []string{
		ProfileFileName,
		filepath.Join(home, ".config", "enough", ProfileFileName),
		filepath.Join(home, ".config", ProfileFileName),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("no config file found (looked in %s); run `enough init` to create one",
		strings.Join(candidates, ", "))
}

// DefaultProfilesPath is where init writes the sample by default.
func DefaultProfilesPath(home string) string {
	return filepath.Join(home, ".config", "enough", ProfileFileName)
}

// LoadProfiles reads and validates path. An empty path searches the
// default locations under home.
func LoadProfiles(path, home string) (*Profiles, error) {
	if path == "" {
		found, err := FindProfilesFile(home)
		if err != nil {
			return nil, err
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file `%s` does not exist", path)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	p, err := ParseProfiles(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Path = path
	return p, nil
}

// ParseProfiles decodes and validates a profiles document.
func ParseProfiles(data []byte) (*Profiles, error) {
	var p Profiles
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidProfile, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the default profile reference and every profile's fields.
func (p *Profiles) Validate() error {
	if p.DefaultProfile != "" {
		if _, ok := p.Profiles[p.DefaultProfile]; !ok {
			return fmt.Errorf("%w: default profile `%s` not found in profiles", domain.ErrInvalidProfile, p.DefaultProfile)
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("web_url", validWebURL); err != nil {
		return err
	}
	if err := validate.RegisterValidation("app_exists", appExists); err != nil {
		return err
	}

	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidProfile, describeValidation(err))
	}
	return nil
}

// Resolve picks the named profile, or the default when name is empty.
func (p *Profiles) Resolve(name string) (string, domain.Profile, error) {
	if name == "" {
		name = p.DefaultProfile
	}
	if name == "" {
		return "", domain.Profile{}, fmt.Errorf("%w: no profile specified and no default profile set in the config file", domain.ErrInvalidProfile)
	}
	ps, ok := p.Profiles[name]
	if !ok {
		return "", domain.Profile{}, fmt.Errorf("%w: profile `%s` not found", domain.ErrInvalidProfile, name)
	}
	return name, ps.Profile(), nil
}

// Names returns profile names sorted alphabetically.
func (p *Profiles) Names() []string {
	names := make([]string, 0, len(p.Profiles))
	for name := range p.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders the profile table printed by `enough profiles`.
func (p *Profiles) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %-20s %-12s %-8s %-4s\n", "Name", "Duration", "Websites", "Apps")
	fmt.Fprintf(&b, "  %s %s %s %s", strings.Repeat("-", 20), strings.Repeat("-", 12), strings.Repeat("-", 8), strings.Repeat("-", 4))
	for _, name := range p.Names() {
		ps := p.Profiles[name]
		marker := ""
		if name == p.DefaultProfile {
			marker = " (default)"
		}
		fmt.Fprintf(&b, "\n• %-20s %-12s %-8d %-4d%s",
			name, ps.Duration.String(), len(ps.Websites), len(ps.Apps), marker)
	}
	return b.String()
}

// SampleProfiles returns the profiles written by `enough init`. Sample apps
// are only listed when they exist on this machine, so the sample always loads.
func SampleProfiles() *Profiles {
	return &Profiles{
		DefaultProfile: "lock-in",
		Profiles: map[string]ProfileSpec{
			"lock-in": {
				Duration: Duration(125 * time.Second),
				Websites: []string{"https://www.youtube.com", "https://reddit.com"},
				Apps:     existingPaths(sampleAppCandidates),
			},
			"wind-down": {
				Duration: Duration(30 * time.Second),
				Websites: []string{"https://www.youtube.com", "https://www.reddit.com", "https://www.github.com"},
			},
		},
	}
}

var sampleAppCandidates = []string{
	"/Applications/CrossOver.app",
	"/Applications/Steam.app",
	"/Applications/Spotify.app",
}

// GenerateSample writes the sample profiles to path, creating parent
// directories, and returns the YAML written.
func GenerateSample(path string) ([]byte, error) {
	data, err := yaml.Marshal(SampleProfiles())
	if err != nil {
		return nil, fmt.Errorf("failed to encode sample config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write sample config: %w", err)
	}
	return data, nil
}

func existingPaths(paths []string) []string {
	var out []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func validWebURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Hostname() != ""
}

func appExists(fl validator.FieldLevel) bool {
	_, err := os.Stat(fl.Field().String())
	return err == nil
}

// describeValidation turns validator output into one line per failed field.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Profiles.")
		switch fe.Tag() {
		case "web_url":
			msgs = append(msgs, fmt.Sprintf("invalid website URL `%v` in %s: scheme must be http or https with a host", fe.Value(), field))
		case "app_exists":
			msgs = append(msgs, fmt.Sprintf("app path `%v` in %s does not exist", fe.Value(), field))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than zero", field))
		case "required", "min":
			msgs = append(msgs, fmt.Sprintf("%s: at least one profile is required", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// RealHome is the home directory profiles are searched under.
func RealHome() string {
	return infra.GetRealUserHome()
}
