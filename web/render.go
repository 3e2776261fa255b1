package web

import (
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/MrEthical07/goPortal/session"
)

// DefaultCDNBaseURL serves avatars when the caller does not configure one.
const DefaultCDNBaseURL = "https://cdn.discordapp.com"

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Portal</title></head>
<body>
{{- if .Authenticated}}
<header>
<img class="avatar" src="{{.AvatarURL}}" alt="" width="64" height="64">
<h1>{{.DisplayName}}{{if .Tag}} <span class="tag">#{{.Tag}}</span>{{end}}</h1>
<a href="/logout">Log out</a>
</header>
<section>
<h2>Servers</h2>
<ul>
{{- range .Memberships}}
<li data-id="{{.ID}}">{{.Name}}</li>
{{- end}}
</ul>
</section>
{{- else}}
<a href="/login">Log in</a>
{{- end}}
</body>
</html>
`))

type pageView struct {
	Authenticated bool
	DisplayName   string
	Tag           string
	AvatarURL     string
	Memberships   []session.Membership
}

// Renderer turns a session record into the portal page.
type Renderer struct {
	cdnBaseURL string
}

// NewRenderer returns a Renderer that builds avatar URLs under cdnBaseURL.
func NewRenderer(cdnBaseURL string) *Renderer {
	cdnBaseURL = strings.TrimRight(strings.TrimSpace(cdnBaseURL), "/")
	if cdnBaseURL == "" {
		cdnBaseURL = DefaultCDNBaseURL
	}
	return &Renderer{cdnBaseURL: cdnBaseURL}
}

// Render writes the unauthenticated view when rec is nil and the dashboard
// otherwise. Memberships are listed exactly as stored.
func (r *Renderer) Render(w io.Writer, rec *session.Record) error {
	if rec == nil {
		return pageTemplate.Execute(w, pageView{})
	}
	return pageTemplate.Execute(w, pageView{
		Authenticated: true,
		DisplayName:   rec.Profile.DisplayName(),
		Tag:           tag(rec.Profile.Discriminator),
		AvatarURL:     r.AvatarURL(rec.Profile),
		Memberships:   rec.Memberships,
	})
}

// Render uses the default CDN.
func Render(w io.Writer, rec *session.Record) error {
	return NewRenderer("").Render(w, rec)
}

// AvatarURL returns the custom avatar for p, or the provider's default
// avatar when p has no avatar hash.
func (r *Renderer) AvatarURL(p session.Profile) string {
	if p.Avatar != "" {
		return r.cdnBaseURL + "/avatars/" + p.ID + "/" + p.Avatar + ".png"
	}
	return r.cdnBaseURL + "/embed/avatars/" + strconv.Itoa(defaultAvatarIndex(p)) + ".png"
}

// Legacy accounts pick by discriminator, migrated ones by snowflake.
func defaultAvatarIndex(p session.Profile) int {
	if d, err := strconv.Atoi(p.Discriminator); err == nil && d != 0 {
		return d % 5
	}
	id, err := strconv.ParseUint(p.ID, 10, 64)
	if err != nil {
		return 0
	}
	return int((id >> 22) % 6)
}

// Migrated accounts report "0" and carry no tag.
func tag(discriminator string) string {
	if discriminator == "" || discriminator == "0" {
		return ""
	}
	return discriminator
}
