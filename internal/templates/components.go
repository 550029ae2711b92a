// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ActivationEmailData feeds the HTML part of the activation mail.
type ActivationEmailData struct {
	AppName  string
	Link     string
	Template string // message ID prefix
	Minutes  int
}

// ActivationEmail renders the HTML alternative of the activation mail.
func ActivationEmail(data ActivationEmailData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		vars := map[string]any{"AppName": data.AppName, "Minutes": data.Minutes}
		link := templ.SafeURL(data.Link)

		return write(w,
			`<!DOCTYPE html><html lang="`, templ.EscapeString(Locale(ctx)), `"><head><meta charset="utf-8"><title>`,
			templ.EscapeString(T(ctx, data.Template+"_subject")),
			`</title></head><body style="font-family:sans-serif;line-height:1.5"><p>`,
			templ.EscapeString(TData(ctx, data.Template+"_html_intro", vars)),
			`</p><p><a href="`, templ.EscapeString(string(link)),
			`" style="display:inline-block;padding:10px 20px;background:#2563eb;color:#fff;text-decoration:none;border-radius:4px">`,
			templ.EscapeString(T(ctx, data.Template+"_html_button")),
			`</a></p><p style="color:#6b7280;font-size:small">`,
			templ.EscapeString(TData(ctx, data.Template+"_html_expiry", vars)),
			`<br>`, templ.EscapeString(data.Link),
			`</p></body></html>`,
		)
	})
}

// ActivationPageData feeds the page shown after following an activation link.
// A non-empty Action renders the confirmation form posting to it instead of
// a result.
type ActivationPageData struct {
	Message string
	Success bool
	Action  string
}

// ActivationPage renders the activation link confirmation or its result.
func ActivationPage(data ActivationPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		heading := T(ctx, "activate_failed_heading")
		switch {
		case data.Action != "":
			heading = T(ctx, "activate_confirm_heading")
		case data.Success:
			heading = T(ctx, "activate_success_heading")
		}

		if err := write(w,
			`<!DOCTYPE html><html lang="`, templ.EscapeString(Locale(ctx)),
			`"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`,
			templ.EscapeString(T(ctx, "activate_title")), ` · `, templ.EscapeString(T(ctx, "app_name")),
			`</title></head><body style="font-family:sans-serif;max-width:32rem;margin:4rem auto"><h1>`,
			templ.EscapeString(heading), `</h1><p>`, templ.EscapeString(data.Message), `</p>`,
		); err != nil {
			return err
		}
		if data.Action != "" {
			if err := write(w,
				`<form method="post" action="`, templ.EscapeString(data.Action), `"><button type="submit">`,
				templ.EscapeString(T(ctx, "activate_confirm_button")), `</button></form>`,
			); err != nil {
				return err
			}
		}
		if data.Success {
			if err := write(w, `<p>`, templ.EscapeString(T(ctx, "activate_success_text")), `</p>`); err != nil {
				return err
			}
		}
		return write(w, `</body></html>`)
	})
}

func write(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}
