// Package sandbox is an in-memory fake of the 1cloud.ru API for local
// development and tests.
package sandbox

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/onecloud/onecloud/internal/onecloud"
)

// Server states reported by the sandbox.
const (
	StateActive  = "Active"
	StateStopped = "Stopped"
	StateDeleted = "Deleted"
)

// Server mirrors the provider's server object.
type Server struct {
	ID                int      `json:"ID"`
	Name              string   `json:"Name"`
	State             string   `json:"State"`
	CPU               int      `json:"CPU"`
	RAM               int      `json:"RAM"`
	HDD               int      `json:"HDD"`
	HDDType           string   `json:"HDDType"`
	IsHighPerformance bool     `json:"isHighPerformance"`
	ImageID           int      `json:"ImageID"`
	DCLocation        string   `json:"DCLocation"`
	IP                string   `json:"IP"`
	AdminUserName     string   `json:"AdminUserName"`
	AdminPassword     string   `json:"AdminPassword"`
	LinkedNetworks    []int    `json:"LinkedNetworks"`
	Tags              []string `json:"Tags"`
}

// Network mirrors the provider's private network object.
type Network struct {
	ID             int    `json:"ID"`
	Name           string `json:"Name"`
	State          string `json:"State"`
	IsDefault      bool   `json:"IsDefault"`
	LinkedServers  []int  `json:"LinkedServers"`
	NetworkAddress string `json:"NetworkAddress"`
}

// Image mirrors the provider's image (template) object.
type Image struct {
	ID       int    `json:"ID"`
	Name     string `json:"Name"`
	TechName string `json:"TechName"`
	Family   string `json:"Family"`
	ServerID int    `json:"ServerID,omitempty"`
	IsCustom bool   `json:"IsCustom"`
}

// DCLocation describes a datacenter servers can be placed in.
type DCLocation struct {
	ID        int    `json:"ID"`
	Title     string `json:"Title"`
	TechTitle string `json:"TechTitle"`
	IsEnabled bool   `json:"IsEnabled"`
}

// Options configures a Sandbox.
type Options struct {
	Token string
	// Balance is the account balance reported by /customer/balance.
	Balance float64
	// ThrottleRPS enables per-token throttling when positive.
	ThrottleRPS float64
	Burst       int
}

// ErrNotFound is returned for unknown object ids.
var ErrNotFound = errors.New("object not found")

// Sandbox holds the fake account state.
type Sandbox struct {
	token    string
	throttle *throttle

	mu       sync.Mutex
	balance  float64
	nextID   int
	servers  map[int]*Server
	networks map[int]*Network
	images   map[int]*Image
	dcs      []DCLocation
}

// New returns a sandbox seeded with public images and datacenters.
func New(opts Options) *Sandbox {
	s := &Sandbox{
		token:    strings.TrimSpace(opts.Token),
		balance:  opts.Balance,
		nextID:   100,
		servers:  make(map[int]*Server),
		networks: make(map[int]*Network),
		images:   make(map[int]*Image),
		dcs: []DCLocation{
			{ID: 1, Title: "Moscow, DataSpace", TechTitle: "SdnMsk", IsEnabled: true},
			{ID: 2, Title: "Saint Petersburg, Xelent", TechTitle: "SdnSpb", IsEnabled: true},
			{ID: 3, Title: "Almaty, Ahost", TechTitle: "SdnKz", IsEnabled: false},
		},
	}
	if opts.ThrottleRPS > 0 {
		s.throttle = newThrottle(opts.ThrottleRPS, opts.Burst)
	}

	for _, img := range []Image{
		{ID: 1, Name: "Ubuntu 22.04 x64", TechName: "ubuntu-22.04", Family: "linux"},
		{ID: 2, Name: "Debian 12 x64", TechName: "debian-12", Family: "linux"},
		{ID: 3, Name: "Windows Server 2022", TechName: "win-2022", Family: "windows"},
	} {
		s.images[img.ID] = &img
	}
	return s
}

// Token returns the bearer token the sandbox accepts.
func (s *Sandbox) Token() string {
	return s.token
}

// CheckHealth implements the server health checker.
func (s *Sandbox) CheckHealth(ctx context.Context) error {
	return ctx.Err()
}

func (s *Sandbox) allocateID() int {
	s.nextID++
	return s.nextID
}

func (s *Sandbox) Balance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

func (s *Sandbox) ListDCLocations() []DCLocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DCLocation(nil), s.dcs...)
}

func (s *Sandbox) ListImages() []Image {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Image, 0, len(s.images))
	for _, img := range s.images {
		out = append(out, *img)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateImage snapshots an existing server into a custom image.
func (s *Sandbox) CreateImage(req onecloud.CreateImageRequest) (Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.servers[req.ServerID]; !ok {
		return Image{}, ErrNotFound
	}
	img := &Image{
		ID:       s.allocateID(),
		Name:     req.Name,
		TechName: req.TechName,
		Family:   "custom",
		ServerID: req.ServerID,
		IsCustom: true,
	}
	s.images[img.ID] = img
	return *img, nil
}

func (s *Sandbox) DeleteImage(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[id]; !ok {
		return ErrNotFound
	}
	delete(s.images, id)
	return nil
}

func (s *Sandbox) ListNetworks() []Network {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Network, 0, len(s.networks))
	for _, n := range s.networks {
		out = append(out, copyNetwork(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Sandbox) GetNetwork(id int) (Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.networks[id]
	if !ok {
		return Network{}, ErrNotFound
	}
	return copyNetwork(n), nil
}

func (s *Sandbox) CreateNetwork(name string) Network {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := &Network{
		ID:             s.allocateID(),
		Name:           name,
		State:          StateActive,
		LinkedServers:  []int{},
		NetworkAddress: "10.0.0.0/24",
	}
	s.networks[n.ID] = n
	return copyNetwork(n)
}

func (s *Sandbox) DeleteNetwork(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.networks[id]
	if !ok {
		return ErrNotFound
	}
	for _, serverID := range n.LinkedServers {
		if srv, ok := s.servers[serverID]; ok {
			srv.LinkedNetworks = without(srv.LinkedNetworks, id)
		}
	}
	delete(s.networks, id)
	return nil
}

func (s *Sandbox) ListServers() []Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Server, 0, len(s.servers))
	for _, srv := range s.servers {
		out = append(out, copyServer(srv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Sandbox) GetServer(id int) (Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	srv, ok := s.servers[id]
	if !ok {
		return Server{}, ErrNotFound
	}
	return copyServer(srv), nil
}

// CreateServer provisions a server in the Active state.
func (s *Sandbox) CreateServer(req onecloud.CreateServerRequest) (Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[req.ImageID]; !ok {
		return Server{}, ErrNotFound
	}

	id := s.allocateID()
	srv := &Server{
		ID:                id,
		Name:              req.Name,
		State:             StateActive,
		CPU:               req.CPU,
		RAM:               req.RAM,
		HDD:               req.HDD,
		HDDType:           req.HDDType,
		IsHighPerformance: req.IsHighPerformance,
		ImageID:           req.ImageID,
		DCLocation:        req.DCLocation,
		IP:                sandboxIP(id),
		AdminUserName:     "root",
		AdminPassword:     uuid.NewString()[:12],
		LinkedNetworks:    []int{},
		Tags:              []string{},
	}
	s.servers[id] = srv
	return copyServer(srv), nil
}

func (s *Sandbox) UpdateServer(id int, req onecloud.UpdateServerRequest) (Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	srv, ok := s.servers[id]
	if !ok {
		return Server{}, ErrNotFound
	}
	srv.CPU = req.CPU
	srv.RAM = req.RAM
	srv.HDD = req.HDD
	srv.HDDType = req.HDDType
	srv.IsHighPerformance = req.IsHighPerformance
	return copyServer(srv), nil
}

func (s *Sandbox) DeleteServer(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	srv, ok := s.servers[id]
	if !ok {
		return ErrNotFound
	}
	for _, networkID := range srv.LinkedNetworks {
		if n, ok := s.networks[networkID]; ok {
			n.LinkedServers = without(n.LinkedServers, id)
		}
	}
	delete(s.servers, id)
	return nil
}

// ErrUnknownAction is returned for action types the API does not define.
var ErrUnknownAction = errors.New("unknown action type")

// ApplyAction runs one action sub-protocol request against a server.
func (s *Sandbox) ApplyAction(id int, action onecloud.ActionType, networkID int) (Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	srv, ok := s.servers[id]
	if !ok {
		return Server{}, ErrNotFound
	}

	switch action {
	case onecloud.ActionPowerOn, onecloud.ActionPowerReboot:
		srv.State = StateActive
	case onecloud.ActionPowerOff, onecloud.ActionShutDownGuestOS:
		srv.State = StateStopped
	case onecloud.ActionAddNetwork:
		n, ok := s.networks[networkID]
		if !ok {
			return Server{}, ErrNotFound
		}
		if !slices.Contains(srv.LinkedNetworks, networkID) {
			srv.LinkedNetworks = append(srv.LinkedNetworks, networkID)
			n.LinkedServers = append(n.LinkedServers, id)
		}
	case onecloud.ActionRemoveNetwork:
		n, ok := s.networks[networkID]
		if !ok {
			return Server{}, ErrNotFound
		}
		srv.LinkedNetworks = without(srv.LinkedNetworks, networkID)
		n.LinkedServers = without(n.LinkedServers, id)
	default:
		return Server{}, ErrUnknownAction
	}
	return copyServer(srv), nil
}

func copyServer(srv *Server) Server {
	out := *srv
	out.LinkedNetworks = append([]int{}, srv.LinkedNetworks...)
	out.Tags = append([]string{}, srv.Tags...)
	return out
}

func copyNetwork(n *Network) Network {
	out := *n
	out.LinkedServers = append([]int{}, n.LinkedServers...)
	return out
}

func without(ids []int, id int) []int {
	return slices.DeleteFunc(ids, func(v int) bool { return v == id })
}

func sandboxIP(id int) string {
	return "192.0.2." + strconv.Itoa(id%250+1)
}
