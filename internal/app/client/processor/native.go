package processor

import (
	"context"

	"golang.org/x/exp/slog"
)

// Ticker пошаговая работа с адресной книгой устройства
type Ticker interface {
	// Tick выполняет один ограниченный шаг и сообщает, завершена ли работа
	Tick(ctx context.Context) (bool, error)
}

// Native выполняет Ticker по одному шагу на каждое срабатывание таймера
type Native struct {
	host   Host
	ticker Ticker
	stats  func() Stats
	log    *slog.Logger
	ticks  int
}

func NewNative(host Host, ticker Ticker, name string, log *slog.Logger) *Native {
	n := &Native{
		host:   host,
		ticker: ticker,
		log:    log.With(slog.String("component", name)),
	}
	if r, ok := ticker.(Reporter); ok {
		n.stats = r.Stats
	}
	return n
}

func (n *Native) Stats() Stats {
	if n.stats == nil {
		return Stats{}
	}
	return n.stats()
}

// Ticks возвращает число выполненных шагов
func (n *Native) Ticks() int {
	return n.ticks
}

func (n *Native) Start(_ context.Context) {
	n.host.SetTimeout(0)
}

func (n *Native) OnResponse(_ context.Context, resp Response) {
	n.log.Warn("unexpected response", slog.Int64("request", int64(resp.ID)))
}

func (n *Native) OnTimeout(ctx context.Context) {
	n.ticks++
	done, err := n.ticker.Tick(ctx)
	if err != nil {
		n.log.Error("address book step failed", slog.Int("tick", n.ticks), slog.String("error", err.Error()))
		n.host.Complete(StatusError, err)
		return
	}
	if done {
		n.log.Debug("address book pass finished", slog.Int("ticks", n.ticks))
		n.host.Complete(StatusSuccess, nil)
		return
	}
	n.host.SetTimeout(0)
}

func (n *Native) Cancel(_ context.Context) {
	n.host.SetTimeout(NoTimeout)
	n.host.Complete(StatusUserCancelled, nil)
}
