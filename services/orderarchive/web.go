package orderarchive

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gasbutano/checkoutbackend/lib/mycontext"
	"github.com/gasbutano/checkoutbackend/lib/myhttp"
	"github.com/gasbutano/checkoutbackend/lib/mylog"
	"github.com/gasbutano/checkoutbackend/lib/mypubsub"
	"github.com/gasbutano/checkoutbackend/lib/mystore"
	"github.com/gasbutano/checkoutbackend/lib/mytime"
	"github.com/gasbutano/checkoutbackend/services/checkoutevents"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and ease testing
func NewService(orderStore mystore.Store[OrderRecord], subscriber mypubsub.PubSub, nower mytime.Nower) *webService {
	logger := mylog.New("orderarchive")

	return &webService{
		logger:  logger,
		service: newService(orderStore, subscriber, nower, logger),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/api/orderarchive", s.listOrdersPage()).Methods("GET")
	router.HandleFunc("/api/orderarchive/{checkoutUID}", s.getOrderPage()).Methods("GET")

	// Checkout events pushed by pubsub
	router.HandleFunc("/api/orderarchive/event", s.eventPage()).Methods("POST")

	return s.service.Subscribe(c)
}

func (s *webService) listOrdersPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		responseWriter := myhttp.NewWriter(s.logger)

		records, err := s.service.listOrders(c)
		if err != nil {
			responseWriter.WriteError(c, w, 1, err)
			return
		}

		responseWriter.Write(c, w, http.StatusOK, records)
	}
}

func (s *webService) getOrderPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		responseWriter := myhttp.NewWriter(s.logger)

		record, err := s.service.getOrder(c, mux.Vars(r)["checkoutUID"])
		if err != nil {
			responseWriter.WriteError(c, w, 2, err)
			return
		}

		responseWriter.Write(c, w, http.StatusOK, record)
	}
}

func (s *webService) eventPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		responseWriter := myhttp.NewWriter(s.logger)

		err := checkoutevents.DispatchEvent(c, r.Body, s.service)
		if err != nil {
			responseWriter.WriteError(c, w, 3, err)
			return
		}

		responseWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{Message: "event accepted"})
	}
}
