package garuda

import (
	"strings"

	"github.com/czx-lab/garuda/network/tcp"
	"github.com/czx-lab/garuda/network/unix"
	"github.com/czx-lab/garuda/network/ws"
)

const (
	TransportTcp  = "tcp"
	TransportWs   = "ws"
	TransportUnix = "unix"
)

type BackendConf struct {
	// Identity announced on activation
	GadgetName string `json:",optional"`
	GadgetID   string `json:",optional"`
	// tcp, ws or unix
	Transport string            `json:",default=tcp,options=tcp|ws|unix"`
	Tcp       tcp.TcpClientConf `json:",optional"`
	Ws        ws.ClientConf     `json:",optional"`
	Unix      unix.ClientConf   `json:",optional"`
}

func defaultBackendConf(conf *BackendConf) {
	if len(conf.Transport) == 0 {
		conf.Transport = TransportTcp
	}
}

// token is the termination line the selected transport watches for.
func (c *BackendConf) token() string {
	var token string
	switch c.Transport {
	case TransportWs:
		token = c.Ws.Token
	case TransportUnix:
		token = c.Unix.Token
	default:
		token = c.Tcp.Token
	}
	if token = strings.TrimSpace(token); len(token) == 0 {
		return TerminationToken
	}
	return token
}
