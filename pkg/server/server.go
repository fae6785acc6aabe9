package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IlyushaZ/token-sale/pkg/server/handler"
	"github.com/IlyushaZ/token-sale/pkg/server/middleware"
	"github.com/IlyushaZ/token-sale/pkg/service"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
)

func New(addr string, saleSvc service.Sale, gatherer prometheus.Gatherer) (*http.Server, error) {
	return &http.Server{
		Addr:         addr,
		Handler:      Handler(saleSvc, gatherer),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}, nil
}

func Handler(saleSvc service.Sale, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/sale", handler.SaleInfo(saleSvc))
	mux.Handle("/sale/start", handler.SaleStart(saleSvc))
	mux.Handle("/sale/price", handler.SaleSetPrice(saleSvc))
	mux.Handle("/buy", handler.SaleBuy(saleSvc))
	mux.Handle("/pay", handler.SalePay(saleSvc))
	mux.Handle("/dispatch", handler.SaleDispatch(saleSvc))
	mux.Handle("/withdraw", handler.SaleWithdraw(saleSvc))
	mux.Handle("/withdraw-all", handler.SaleWithdrawAll(saleSvc))
	mux.Handle("/royalties", handler.SaleRoyalties(saleSvc))
	mux.Handle("/events", handler.SaleEventsListPage(saleSvc))

	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	chain := middleware.Chain{
		middleware.RequestID,
		middleware.Log,
		middleware.Recovery,
	}

	return chain.Then(mux)
}
