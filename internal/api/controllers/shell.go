package controllers

// indexPage is the minimal HTML shell; the real front-end polls the JSON
// API below it.
const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>ytgrab</title>
</head>
<body>
  <h1>ytgrab</h1>
  <p>Media download service. See <code>/api/get_info</code>, <code>/api/download</code>,
  <code>/api/status/&lt;jobId&gt;</code>, <code>/api/my_downloads</code>,
  <code>/api/stats</code>.</p>
</body>
</html>
`
