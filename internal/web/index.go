package web

// indexHTML is the single embedded page. It drives the JSON API and renders
// progress broadcasts from the websocket.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>PDF B&amp;W Compressor</title>
<style>
  body { font-family: sans-serif; max-width: 720px; margin: 2em auto; padding: 0 1em; }
  input, select, button { font-size: 1em; padding: 0.4em; }
  input[type=text] { width: 60%; }
  #log { background: #111; color: #9e9; padding: 1em; min-height: 12em; white-space: pre-wrap; font-family: monospace; font-size: 0.85em; }
  .row { margin: 0.6em 0; }
</style>
</head>
<body>
<h1>PDF B&amp;W Compressor</h1>
<div class="row">
  <input type="text" id="path" placeholder="Path to a PDF file or directory">
  <select id="quality">
    <option value="high">high</option>
    <option value="balanced" selected>balanced</option>
    <option value="compact">compact</option>
  </select>
</div>
<div class="row">
  <button onclick="startCompress()">Compress</button>
  <button onclick="stopCompress()">Stop</button>
</div>
<div id="log"></div>
<script>
const log = document.getElementById('log');
function append(line) {
  log.textContent += line + '\n';
  log.scrollTop = log.scrollHeight;
}

const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
const ws = new WebSocket(proto + '//' + location.host + '/ws');
ws.onmessage = function(ev) {
  const msg = JSON.parse(ev.data);
  if (msg.type === 'progress') {
    append(msg.data.message);
  } else if (msg.type === 'compress_completed') {
    append('Completed: ' + msg.data.result.successful_compressions + '/' + msg.data.result.total_files + ' files');
    append(msg.data.report);
  } else if (msg.type === 'compress_error') {
    append('Error: ' + msg.data.error);
  } else {
    append('[' + msg.type + ']');
  }
};

function startCompress() {
  fetch('/api/compress', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({
      path: document.getElementById('path').value,
      quality: document.getElementById('quality').value
    })
  }).then(r => r.json()).then(resp => {
    if (!resp.success) append('Error: ' + resp.error);
  });
}

function stopCompress() {
  fetch('/api/stop', {method: 'POST'}).then(r => r.json()).then(resp => {
    if (!resp.success) append('Error: ' + resp.error);
  });
}
</script>
</body>
</html>
`
