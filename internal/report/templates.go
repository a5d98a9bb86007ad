package report

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: -apple-system, system-ui, sans-serif; color: #1f2937; margin: 0; display: grid; grid-template-columns: 360px 1fr; }
  nav { border-right: 1px solid #e5e7eb; padding: 16px; height: 100vh; overflow: auto; position: sticky; top: 0; font-size: 13px; }
  nav ul { list-style: none; padding-left: 14px; margin: 0; }
  nav li.active > a { font-weight: bold; color: #2563eb; }
  .dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-right: 4px; }
  main { padding: 16px 32px; max-width: 960px; }
  section { border-top: 1px solid #f3f4f6; padding-top: 8px; }
  pre { overflow-x: auto; padding: 8px; }
  .summary { background: #f9fafb; padding: 12px; border-radius: 6px; white-space: pre-wrap; }
  .error { color: #b91c1c; }
</style>
</head>
<body>
<nav>
  <h3>{{.Title}}</h3>
  {{.TreeHTML}}
</nav>
<main>
  <h1>{{.Title}}</h1>
  {{if .Question}}<p><strong>Question:</strong> {{.Question}}</p>{{end}}
  <div class="summary">{{.Summary}}</div>
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
  {{if .Baseline}}<h2>Baseline</h2><div class="summary">{{.Baseline}}</div>{{end}}
  {{if .Answer}}<h2>Tree search</h2><div class="summary">{{.Answer}}</div>{{end}}
  {{if .BestCode}}<h2>Best rubric</h2>{{.BestCode}}{{end}}
  <h2>Nodes</h2>
  {{range .Nodes}}
  <section id="{{.Anchor}}">{{.HTML}}</section>
  {{end}}
</main>
</body>
</html>
`
