package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Sink 消费一次调用的汇总结果（控制台、数据库、静态页面等）。
// Sink 的错误只记日志，不影响其它 Sink 和后续轮次。
type Sink interface {
	Name() string
	Consume(ctx context.Context, res Result) error
}

type Scheduler struct {
	cron    *cron.Cron
	orch    *Orchestrator
	sinks   []Sink
	running atomic.Bool
	// runTimeout 限制单轮总耗时，单个来源的超时由 adapter 自己控制
	runTimeout time.Duration
}

func New(spec string, orch *Orchestrator, sinks ...Sink) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:       c,
		orch:       orch,
		sinks:      sinks,
		runTimeout: 5 * time.Minute,
	}

	_, err := c.AddFunc(spec, func() { s.tick() })
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 启动后稍等片刻再跑首轮，让 HTTP 服务先就绪
	const startupDelay = 5 * time.Second
	time.AfterFunc(startupDelay, s.tick)
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// tick 上一轮还没结束时跳过本轮，避免同一时刻有两轮采集
func (s *Scheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("scheduler: previous collect job still running, skip this tick")
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce 对外暴露的单次执行入口：跑一轮采集并交给所有 Sink
func (s *Scheduler) RunOnce(ctx context.Context) Result {
	log.Println("start collect job...")

	res := s.orch.RunAll(ctx)
	Dispatch(ctx, res, s.sinks...)

	log.Printf("collect job done (all sources), items=%d", res.TotalItems())
	return res
}

// Dispatch 依次把结果交给各个 Sink，单个 Sink 失败或 panic 不影响其它 Sink
func Dispatch(ctx context.Context, res Result, sinks ...Sink) {
	for _, sink := range sinks {
		if err := consumeSafely(ctx, sink, res); err != nil {
			log.Printf("sink %s error: %v", sink.Name(), err)
		}
	}
}

func consumeSafely(ctx context.Context, sink Sink, res Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sink.Consume(ctx, res)
}
