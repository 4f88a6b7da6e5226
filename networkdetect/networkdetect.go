package networkdetect

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/egaotan/solana-token2022/config"
	"github.com/egaotan/solana-token2022/utils"
	"github.com/go-ping/ping"
)

var ErrUnreachable = errors.New("networkdetect: no node answered")

// Probe measures the round trip time to host.
type Probe func(host string) (time.Duration, error)

type Notifier interface {
	Text(ctx context.Context, content string) error
}

// IcmpProbe pings host count times and returns the average rtt.
func IcmpProbe(count int, timeout time.Duration) Probe {
	return func(host string) (time.Duration, error) {
		pinger, err := ping.NewPinger(host)
		if err != nil {
			return 0, err
		}
		pinger.Count = count
		pinger.Timeout = timeout
		if err := pinger.Run(); err != nil {
			return 0, err
		}
		stats := pinger.Statistics()
		if stats.PacketsRecv == 0 {
			return 0, fmt.Errorf("%s: no reply", host)
		}
		return stats.AvgRtt, nil
	}
}

func hostOf(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%s: no host", endpoint)
	}
	return u.Hostname(), nil
}

// Fastest probes the rpc host of every node and returns the nodes ordered by
// latency. Nodes that do not answer are left out.
func Fastest(nodes []*config.Node, probe Probe) ([]*config.Node, error) {
	logger := utils.NewLog(config.LogPath, config.NetworkLog)
	type measured struct {
		node *config.Node
		rtt  time.Duration
	}
	results := make([]measured, 0, len(nodes))
	for _, node := range nodes {
		host, err := hostOf(node.Rpc)
		if err != nil {
			logger.Printf("skip node %s: %s", node.Rpc, err.Error())
			continue
		}
		rtt, err := probe(host)
		if err != nil {
			logger.Printf("ping %s err: %s", host, err.Error())
			continue
		}
		logger.Printf("ping %s rtt: %s", host, rtt)
		results = append(results, measured{node: node, rtt: rtt})
	}
	if len(results) == 0 {
		return nil, ErrUnreachable
	}
	// insertion sort keeps equal latencies in configured order
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].rtt < results[j-1].rtt; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
	ordered := make([]*config.Node, 0, len(results))
	for _, r := range results {
		ordered = append(ordered, r.node)
	}
	return ordered, nil
}

// NetworkDetector keeps pinging one node and notifies when the latency stays
// above the threshold.
type NetworkDetector struct {
	peer      string
	threshold time.Duration
	interval  time.Duration
	window    int
	probe     Probe
	logger    *log.Logger
	notifier  Notifier

	lock sync.Mutex
	rtts []time.Duration
	done chan struct{}
}

func NewNetworkDetector(node *config.Node, probe Probe, notifier Notifier) (*NetworkDetector, error) {
	host, err := hostOf(node.Rpc)
	if err != nil {
		return nil, err
	}
	nd := &NetworkDetector{
		peer:      host,
		threshold: 200 * time.Millisecond,
		interval:  10 * time.Second,
		window:    30,
		probe:     probe,
		logger:    utils.NewLog(config.LogPath, config.NetworkLog),
		notifier:  notifier,
		done:      make(chan struct{}),
	}
	return nd, nil
}

// Average is the mean rtt of the samples in the window.
func (nd *NetworkDetector) Average() time.Duration {
	nd.lock.Lock()
	defer nd.lock.Unlock()
	if len(nd.rtts) == 0 {
		return 0
	}
	sum := time.Duration(0)
	for _, rtt := range nd.rtts {
		sum += rtt
	}
	return sum / time.Duration(len(nd.rtts))
}

func (nd *NetworkDetector) record(rtt time.Duration) time.Duration {
	nd.lock.Lock()
	nd.rtts = append(nd.rtts, rtt)
	if len(nd.rtts) > nd.window {
		nd.rtts = nd.rtts[len(nd.rtts)-nd.window:]
	}
	nd.lock.Unlock()
	return nd.Average()
}

func (nd *NetworkDetector) Start(ctx context.Context) {
	go nd.loop(ctx)
}

// Stop waits for the loop to exit once the context passed to Start is done.
func (nd *NetworkDetector) Stop() {
	<-nd.done
}

func (nd *NetworkDetector) loop(ctx context.Context) {
	defer close(nd.done)
	ticker := time.NewTicker(nd.interval)
	defer ticker.Stop()
	notifyTime := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		rtt, err := nd.probe(nd.peer)
		if err != nil {
			nd.logger.Printf("ping %s err: %s", nd.peer, err.Error())
			continue
		}
		avg := nd.record(rtt)
		nd.logger.Printf("ping %s rtt: %s, avg: %s", nd.peer, rtt, avg)
		if avg <= nd.threshold || time.Since(notifyTime) < 5*time.Minute {
			continue
		}
		notifyTime = time.Now()
		if nd.notifier == nil {
			continue
		}
		content := fmt.Sprintf("token2022 rpc node %s latency: %s;\ntime: %s;", nd.peer, avg, notifyTime.Format("2006-01-02 15:04:05"))
		if err := nd.notifier.Text(ctx, content); err != nil {
			nd.logger.Printf("notify err: %s", err.Error())
		}
	}
}
