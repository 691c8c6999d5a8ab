package dispatch

import (
	"strconv"
	"sync"

	"github.com/kilianp07/vpp/core/logger"
	"github.com/kilianp07/vpp/core/monitoring"
	"github.com/kilianp07/vpp/core/mqtt"
)

// setpointQueuePerWorker sizes the pool queue relative to its worker count.
const setpointQueuePerWorker = 64

type setpointJob struct {
	dispatchID string
	plantID    int
	kw         float64
}

// setpointPool publishes setpoints in the background so a dispatch never
// waits on the broker. Jobs that do not fit in the queue are dropped and
// counted as failures.
type setpointPool struct {
	pub  mqtt.Client
	log  logger.Logger
	jobs chan setpointJob
	wg   sync.WaitGroup

	mu      sync.Mutex
	idle    *sync.Cond
	pending int
	closed  bool
}

func newSetpointPool(pub mqtt.Client, workers int, log logger.Logger) *setpointPool {
	p := &setpointPool{
		pub:  pub,
		log:  log,
		jobs: make(chan setpointJob, workers*setpointQueuePerWorker),
	}
	p.idle = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// enqueue hands a job to the workers without blocking. It reports false when
// the pool is stopped or full.
func (p *setpointPool) enqueue(job setpointJob) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		p.pending++
		return true
	default:
		return false
	}
}

func (p *setpointPool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.send(job)
		p.mu.Lock()
		p.pending--
		if p.pending == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

func (p *setpointPool) send(job setpointJob) {
	cmdID, err := p.pub.SendSetpoint(job.dispatchID, job.plantID, job.kw)
	if err != nil {
		setpointFailure.Inc()
		p.log.Errorf("setpoint for plant %d: %v", job.plantID, err)
		monitoring.CaptureException(err, map[string]string{
			"module":      "mqtt",
			"plant_id":    strconv.Itoa(job.plantID),
			"dispatch_id": job.dispatchID,
		})
		return
	}
	setpointSuccess.Inc()
	p.log.Debugf("setpoint %s sent to plant %d (%.2f kW)", cmdID, job.plantID, job.kw)
}

// wait blocks until every queued job has been handled.
func (p *setpointPool) wait() {
	p.mu.Lock()
	for p.pending > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()
}

// stop rejects new jobs, lets the workers finish the queue and returns once
// they have exited.
func (p *setpointPool) stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
