// Package monitor exposes a running machine through an HTTP API.
package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"memcore/internal/machine"
	"memcore/kernel"
	"memcore/kernel/mm"
	ksync "memcore/kernel/sync"
)

const (
	defaultFrameWindow = 256
	maxFrameWindow     = 4096
	defaultProfileTime = time.Second
)

// Monitor serves the state of a machine over HTTP. Requests are serialized
// with a spinlock since the memory manager is not safe for concurrent use.
type Monitor struct {
	machine     *machine.Machine
	lock        ksync.Spinlock
	portNumber  int
	openBrowser bool

	// halted is set once a request triggered a fatal condition. The
	// machine state is no longer consistent after that.
	halted *kernel.Error
}

// NewMonitor creates a Monitor for m.
func NewMonitor(m *machine.Machine) *Monitor {
	return &Monitor{machine: m}
}

// WithPortNumber sets the port number of the monitor. Port 0 selects a
// random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber
	return m
}

// WithBrowser makes StartServer open the index page in a browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// Router returns the HTTP routes served by the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", m.index).Methods(http.MethodGet)
	r.HandleFunc("/api/summary", m.summary).Methods(http.MethodGet)
	r.HandleFunc("/api/state", m.state).Methods(http.MethodGet)
	r.HandleFunc("/api/frames", m.frames).Methods(http.MethodGet)
	r.HandleFunc("/api/directories", m.directories).Methods(http.MethodGet)
	r.HandleFunc("/api/lookup/{addr}", m.lookup).Methods(http.MethodGet)
	r.HandleFunc("/api/grow/{size}", m.grow).Methods(http.MethodPost)
	r.HandleFunc("/api/resource", m.resource).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)

	return r
}

// StartServer starts serving in the background and returns the URL of the
// index page.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring machine with %s\n", url)

	go func() {
		if err := http.Serve(listener, m.Router()); err != nil {
			fmt.Fprintf(os.Stderr, "monitor stopped: %v\n", err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "failed to open browser: %v\n", err)
		}
	}

	return url, nil
}

// withMachine runs fn while holding the lock. Fatal conditions raised by fn
// halt the machine and are reported to the client.
func (m *Monitor) withMachine(w http.ResponseWriter, fn func(*machine.Machine)) {
	m.lock.Acquire()
	defer m.lock.Release()

	if m.halted != nil {
		writeError(w, http.StatusServiceUnavailable, "machine halted: "+m.halted.Error())
		return
	}

	defer func() {
		if r := recover(); r != nil {
			err, ok := kernel.AsError(r)
			if !ok {
				panic(r)
			}

			m.halted = err
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("[%s] %s", err.Module, err.Message))
		}
	}()

	fn(m.machine)
}

func (m *Monitor) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}

func (m *Monitor) summary(w http.ResponseWriter, _ *http.Request) {
	m.withMachine(w, func(mc *machine.Machine) {
		writeJSON(w, mc.Summary())
	})
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	m.withMachine(w, func(mc *machine.Machine) {
		summary := mc.Summary()

		serializer := goseth.NewSerializer()
		serializer.SetRoot(&summary)
		serializer.SetMaxDepth(1)

		w.Header().Set("Content-Type", "application/json")
		if err := serializer.Serialize(w); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	})
}

type frameWindowRsp struct {
	Start uint32 `json:"start"`
	Count uint32 `json:"count"`

	// Used holds one character per frame: '1' for used, '0' for free.
	Used string `json:"used"`
}

func (m *Monitor) frames(w http.ResponseWriter, r *http.Request) {
	start, err := queryUint(r, "start", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := queryUint(r, "count", defaultFrameWindow)
	if err != nil || count == 0 || count > maxFrameWindow {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("count must be between 1 and %d", maxFrameWindow))
		return
	}

	m.withMachine(w, func(mc *machine.Machine) {
		frames := mc.Memory.Frames()
		if start >= uint64(frames.FrameCount()) {
			writeError(w, http.StatusBadRequest, "start is past the last frame")
			return
		}

		if end := uint64(frames.FrameCount()); start+count > end {
			count = end - start
		}

		used := make([]byte, count)
		for i := range used {
			used[i] = '0'
			if frames.IsUsed(mm.Frame(start + uint64(i))) {
				used[i] = '1'
			}
		}

		writeJSON(w, frameWindowRsp{Start: uint32(start), Count: uint32(count), Used: string(used)})
	})
}

type directoryRsp struct {
	Index        int    `json:"index"`
	PhysAddr     string `json:"phys_addr"`
	OwnedTables  int    `json:"owned_tables"`
	SharedTables int    `json:"shared_tables"`
	Kernel       bool   `json:"kernel"`
	Current      bool   `json:"current"`
}

func (m *Monitor) directories(w http.ResponseWriter, _ *http.Request) {
	m.withMachine(w, func(mc *machine.Machine) {
		var rsp []directoryRsp
		for index, dir := range mc.Memory.Directories() {
			owned, shared := dir.TableCount()
			rsp = append(rsp, directoryRsp{
				Index:        index,
				PhysAddr:     fmt.Sprintf("0x%08x", dir.PhysAddr()),
				OwnedTables:  owned,
				SharedTables: shared,
				Kernel:       dir == mc.Memory.KernelDirectory(),
				Current:      dir == mc.Memory.CurrentDirectory(),
			})
		}

		writeJSON(w, rsp)
	})
}

type lookupRsp struct {
	VirtAddr string `json:"virt_addr"`
	Mapped   bool   `json:"mapped"`
	PhysAddr string `json:"phys_addr,omitempty"`
	Writable bool   `json:"writable"`
	User     bool   `json:"user"`
	Shared   bool   `json:"shared_table"`
}

func (m *Monitor) lookup(w http.ResponseWriter, r *http.Request) {
	addr, err := strconv.ParseUint(mux.Vars(r)["addr"], 0, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address: "+err.Error())
		return
	}

	m.withMachine(w, func(mc *machine.Machine) {
		var (
			virtAddr = uintptr(addr)
			dir      = mc.Memory.CurrentDirectory()
			rsp      = lookupRsp{VirtAddr: fmt.Sprintf("0x%08x", virtAddr)}
		)

		if pte := mc.Memory.LookupPage(virtAddr, false, dir); pte != nil && pte.Mapped() {
			physAddr, _ := mc.Memory.Translate(virtAddr, dir)
			rsp.Mapped = true
			rsp.PhysAddr = fmt.Sprintf("0x%08x", physAddr)
			rsp.Writable = pte.HasFlags(mm.FlagRW)
			rsp.User = pte.HasFlags(mm.FlagUserAccessible)
			rsp.Shared = dir.IsShared(mm.PageFromAddress(virtAddr).TableIndex())
		}

		writeJSON(w, rsp)
	})
}

type growRsp struct {
	PrevEnd string `json:"prev_end"`
	HeapEnd string `json:"heap_end"`
}

func (m *Monitor) grow(w http.ResponseWriter, r *http.Request) {
	size, err := mm.ParseSize(mux.Vars(r)["size"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m.withMachine(w, func(mc *machine.Machine) {
		prevEnd := mc.GrowHeap(uintptr(size))
		writeJSON(w, growRsp{
			PrevEnd: fmt.Sprintf("0x%08x", prevEnd),
			HeapEnd: fmt.Sprintf("0x%08x", mc.Memory.HeapEnd()),
		})
	})
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) resource(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, resourceRsp{CPUPercent: cpuPercent, MemorySize: memInfo.RSS})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := defaultProfileTime
	if v := r.URL.Query().Get("duration"); v != "" {
		var err error
		if duration, err = time.ParseDuration(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	buf := bytes.NewBuffer(nil)
	if err := pprof.StartCPUProfile(buf); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	time.Sleep(duration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, prof)
}

func queryUint(r *http.Request, key string, defValue uint64) (uint64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defValue, nil
	}

	value, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := json.Marshal(map[string]string{"error": msg})
	_, _ = w.Write(data)
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>memsim monitor</title></head>
<body>
<h1>memsim monitor</h1>
<ul>
<li><a href="/api/summary">summary</a></li>
<li><a href="/api/state">state</a></li>
<li><a href="/api/frames?start=0&amp;count=512">frame bitmap</a></li>
<li><a href="/api/directories">page directories</a></li>
<li><a href="/api/lookup/0x00001000">lookup 0x00001000</a></li>
<li><a href="/api/resource">host process resources</a></li>
</ul>
<p>POST /api/grow/{size} grows the kernel heap.</p>
</body>
</html>
`
