package frontend

import (
	"context"
	"html"
	"io"

	"github.com/a-h/templ"
)

func page(title, body string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
<title>`+html.EscapeString(title)+` - PlanHub</title>
<link rel="stylesheet" href="/static/styles.css"/>
</head>
<body>
<main>`+body+`</main>
</body>
</html>`)
		return err
	})
}

func LoginPage() templ.Component {
	return page("Sign in", `
<section class="panel" id="login">
  <h1>Sign in</h1>
  <p class="muted">Use your PlanHub account, or register a new one.</p>
  <form id="login-form">
    <label>Username<input type="text" name="username" autocomplete="username"/></label>
    <label>Password<input type="password" name="password" autocomplete="current-password"/></label>
    <button type="submit">Sign in</button>
    <button type="button" id="register-btn">Register</button>
  </form>
</section>`)
}

func SetupPage() templ.Component {
	return page("Setup", `
<section class="panel" id="setup">
  <h1>Choose a workspace</h1>
  <p class="muted">Create an organization and a workspace, or pick an existing one.</p>
  <div id="org-list"></div>
  <form id="create-org-form">
    <label>Organization name<input type="text" name="name"/></label>
    <button type="submit">Create organization</button>
  </form>
</section>`)
}

func WorkspacePage() templ.Component {
	return page("Workspace", `
<section class="panel" id="plans">
  <h1>Plans</h1>
  <div id="plan-list"></div>
  <button id="new-plan-btn">New plan</button>
</section>
<section class="panel" id="activity">
  <h2>Activity</h2>
  <div id="activity-feed"></div>
</section>`)
}

func WizardPage() templ.Component {
	return page("New plan", `
<section class="panel" id="wizard">
  <nav class="wizard-tabs">
    <span class="tab active" data-tab="general">General</span>
    <span class="tab" data-tab="time">Time</span>
    <span class="tab" data-tab="location">Location</span>
    <span class="tab" data-tab="tickets">Tickets</span>
  </nav>
  <div id="wizard-body"></div>
  <div class="wizard-actions">
    <button id="undo-btn" disabled>Undo</button>
    <button id="redo-btn" disabled>Redo</button>
    <button id="reset-btn" class="btn-danger">Reset</button>
    <button id="back-btn">Back</button>
    <button id="next-btn">Next</button>
    <button id="submit-btn" disabled>Create plan</button>
  </div>
</section>`)
}

// FeedItem renders one activity feed row for stream patches.
func FeedItem(title, subtitle string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div class="feed-item"><span>`+
			html.EscapeString(title)+`</span><span class="muted">`+
			html.EscapeString(subtitle)+`</span></div>`)
		return err
	})
}
