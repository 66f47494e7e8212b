package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterStatic wires a tiny inline HTML page at GET "/".
func RegisterStatic(r *gin.Engine) {
	const page = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width,initial-scale=1"/>
<title>urlShortener</title>
<style>
body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;margin:0;padding:2rem;background:#0b0b0c;color:#e8e8ea}
.container{max-width:720px;margin:0 auto}
.card{background:#151517;border:1px solid #2b2b2f;border-radius:12px;padding:1.25rem;margin-bottom:1rem}
h1,h2{font-size:1.2rem;margin:0 0 1rem}
input,button{font-size:1rem}
input[type=text],input[type=number]{width:100%;box-sizing:border-box;padding:.75rem;border-radius:8px;border:1px solid #2b2b2f;background:#0f0f11;color:#e8e8ea}
.row{display:flex;gap:.5rem;margin-top:.75rem}
button{padding:.75rem 1rem;border:1px solid #2b2b2f;background:#1f1f23;color:#e8e8ea;border-radius:8px;cursor:pointer}
table{width:100%;border-collapse:collapse;font-size:.9rem}
td,th{text-align:left;padding:.35rem;border-bottom:1px solid #2b2b2f}
pre{white-space:pre-wrap;word-break:break-word;background:#0f0f11;border:1px solid #2b2b2f;border-radius:8px;padding:.75rem}
a{color:#97b3ff}
</style>
</head>
<body>
<div class="container">
  <div class="card">
    <h1>Shorten a link</h1>
    <input id="url" type="text" placeholder="https://example.com/very/long/link"/>
    <div class="row">
      <input id="custom" type="text" placeholder="custom code (optional)"/>
      <input id="days" type="number" min="1" placeholder="expires in days (optional)"/>
      <button id="go">Shorten</button>
    </div>
    <div id="out" style="margin-top:1rem"></div>
  </div>
  <div class="card">
    <h2>Stats <button id="refresh" style="float:right;padding:.25rem .5rem">refresh</button></h2>
    <div id="stats"></div>
  </div>
  <p style="opacity:.7">API: <code>POST /api/shorten</code>, <code>GET /:code</code>, <code>GET /api/info/:code</code>, <code>GET /api/stats</code>, <code>POST /api/cleanup</code></p>
</div>
<script>
function esc(s){ return String(s).replace(/[&<>"']/g, c=>({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[c])); }
async function shorten(){
  const url = document.getElementById('url').value.trim();
  const custom = document.getElementById('custom').value.trim();
  const days = parseInt(document.getElementById('days').value, 10);
  const body = { url };
  if(custom) body.customCode = custom;
  if(days > 0) body.expiresInDays = days;
  const res = await fetch('/api/shorten', {
    method:'POST',
    headers:{'Content-Type':'application/json'},
    body:JSON.stringify(body)
  });
  const out = document.getElementById('out');
  const data = await res.json().catch(()=>({}));
  if(!res.ok){ out.innerHTML = '<pre>'+esc(JSON.stringify(data,null,2))+'</pre>'; return; }
  out.innerHTML = '<p><a target="_blank" rel="noopener" href="'+esc(data.shortUrl)+'">'+esc(data.shortUrl)+'</a></p>'+
    '<small>expires: '+esc(data.expiresAt || 'never')+'</small>';
  loadStats();
}
async function loadStats(){
  const res = await fetch('/api/stats');
  const s = await res.json().catch(()=>null);
  const el = document.getElementById('stats');
  if(!res.ok || !s){ el.textContent = 'unavailable'; return; }
  let html = '<p>'+s.totalUrls+' links, '+s.totalClicks+' clicks, '+s.activeUrls+' active, '+s.expiredUrls+' expired</p>';
  html += '<table><tr><th>code</th><th>destination</th><th>clicks</th><th>active</th></tr>';
  for(const r of s.recentUrls){
    html += '<tr><td>'+esc(r.shortCode)+'</td><td>'+esc(r.originalUrl)+'</td><td>'+r.clickCount+'</td><td>'+(r.isActive?'yes':'no')+'</td></tr>';
  }
  el.innerHTML = html + '</table>';
}
document.getElementById('go').addEventListener('click', shorten);
document.getElementById('refresh').addEventListener('click', loadStats);
document.getElementById('url').addEventListener('keydown', e=>{ if(e.key==='Enter') shorten(); });
loadStats();
</script>
</body>
</html>`
	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	})
}
