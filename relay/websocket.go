package relay

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nickjhughes/go-wormhole/log"
)

var upgrader websocket.Upgrader

func initWebsocket() {
	upgrader = websocket.Upgrader{
		HandshakeTimeout: time.Minute,

		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		EnableCompression: true,

		//Rendezvous clients connect cross-origin by nature
		CheckOrigin: func(r *http.Request) bool { return true },
	}
}

func handleWebsocket(w http.ResponseWriter, r *http.Request) {
	respHeader := http.Header{}

	conn, err := upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		log.Warnf("upgrading connection to websocket failed: %s", err.Error())
		return
	}

	client := &Client{
		conn: conn,
		out:  NewOutbound(),
	}
	register <- client

	//Queue the welcome before the reader starts; nothing the client
	//sends may be answered ahead of it
	client.OnConnect()

	go client.watchWrites()
	go client.watchReads()
}
