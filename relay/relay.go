package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/nickjhughes/go-wormhole/config"
	"github.com/nickjhughes/go-wormhole/db"
	"github.com/nickjhughes/go-wormhole/log"
)

var (
	router  *http.ServeMux
	server  *http.Server
	service *Service

	clients     map[*Client]struct{}
	lockClients sync.Mutex

	register   chan *Client
	unregister chan *Client
)

//Initialize sets-up the relay servers initial systems
func Initialize() error {
	if config.Opts == nil {
		panic("attempted to initialize relay without a loaded config")
	}

	//Spin up the usage store first; an empty path leaves it inert
	if err := db.Initialize(); err != nil {
		return err //Pass it up to the CLI
	}

	service = NewService()

	//Prepare the connection infrastructure
	clients = make(map[*Client]struct{})

	register = make(chan *Client)
	unregister = make(chan *Client)

	initWebsocket()

	//Setup router. Websocket upgrades land on the root path; plain
	//browsers get the info page instead
	router = http.NewServeMux()
	router.HandleFunc("/", handleRoot)

	//Configure server
	server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Opts.Relay.Host, config.Opts.Relay.Port),
		Handler: router,
	}

	return nil
}

//Shutdown performs the graceful shutdown of the relay server
//using the provided context
func Shutdown(ctx context.Context) error {
	var err error

	if server != nil {
		server.SetKeepAlivesEnabled(false)
		err = server.Shutdown(ctx)
		log.Info("shutdown relay server")
	}

	db.Close()

	log.Info("completed shutdown")
	return err
}

//Start spins up the relay server as a coroutine
func Start() {
	if server == nil {
		panic("attempted to start relay server that has not been initialized")
	}

	//Handle all the incoming/outgoing connections that get passed in from websocket.
	//So we run this async so it doesn't block the actual relay server
	go runRelay()

	go func() {
		log.Info("starting relay server")
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Err("closing relay server encountered an error", err)
		}
		log.Info("relay server closed")
	}()
}

func runRelay() {
	for {
		select {

		case clnt := <-register: //New client
			lockClients.Lock()
			clients[clnt] = struct{}{}
			LogInfo(clnt, "new client registered")
			lockClients.Unlock()

		case clnt := <-unregister: //Leaving client
			lockClients.Lock()
			if _, ok := clients[clnt]; ok {
				clnt.Close()
				delete(clients, clnt)
			}
			LogInfo(clnt, "client unregistered")
			lockClients.Unlock()
		}
	}
}
