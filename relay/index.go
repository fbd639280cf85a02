package relay

import (
	"net/http"
	"text/template"

	"github.com/gorilla/websocket"
)

//indexTemplate is the info page served to plain HTTP requests on
//the root path. Wormhole clients upgrade to a websocket instead
var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>wormhole relay</title></head>
<body>
<h1>wormhole relay</h1>
<p>This is a rendezvous server for wormhole clients.
Point your client at <code>{{.}}</code> to use it.</p>
</body>
</html>
`))

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		handleWebsocket(w, r)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	indexTemplate.Execute(w, "ws://"+r.Host+"/")
}
