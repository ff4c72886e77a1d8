package devserver

// Popup pages served to the SDK's handshake window. Each resolves the
// handshake by invoking the callable the SDK exposed inside this window;
// a page loaded outside a handshake (no callable) degrades to a notice.

const loginPage = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>Sign in</title></head>
<body>
<h1>Sign in</h1>
<form id="f">
  <input id="email" type="email" placeholder="email" required>
  <input id="password" type="password" placeholder="password" required>
  <button type="submit">Sign in</button>
</form>
<p id="msg"></p>
<script>
const appId = new URLSearchParams(location.search).get('appId') || '';
document.getElementById('f').addEventListener('submit', async (ev) => {
  ev.preventDefault();
  const msg = document.getElementById('msg');
  const resp = await fetch('/apps/' + encodeURIComponent(appId) + '/login', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({
      email: document.getElementById('email').value,
      password: document.getElementById('password').value,
    }),
  });
  if (!resp.ok) { msg.textContent = 'sign in failed'; return; }
  const body = await resp.json();
  if (typeof window.__sc_login_complete === 'function') {
    window.__sc_login_complete(JSON.stringify({key: body.key}));
  } else {
    msg.textContent = 'signed in (no editing session attached)';
  }
});
</script>
</body>
</html>`

const mediaPage = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>Media library</title></head>
<body>
<h1>Media library</h1>
<ul id="files"></ul>
<button id="cancel">Cancel</button>
<script>
const appId = new URLSearchParams(location.search).get('appId') || '';
fetch('/apps/' + encodeURIComponent(appId) + '/media')
  .then((r) => r.json())
  .then((items) => {
    const ul = document.getElementById('files');
    for (const item of items) {
      const li = document.createElement('li');
      const a = document.createElement('a');
      a.href = '#';
      a.textContent = item.name;
      a.addEventListener('click', (ev) => {
        ev.preventDefault();
        if (typeof window.__sc_media_selected === 'function') {
          window.__sc_media_selected(JSON.stringify({file: item}));
        }
      });
      li.appendChild(a);
      ul.appendChild(li);
    }
  });
document.getElementById('cancel').addEventListener('click', () => {
  if (typeof window.__sc_media_cancelled === 'function') {
    window.__sc_media_cancelled('{}');
  } else {
    window.close();
  }
});
</script>
</body>
</html>`
