package smsreminder

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gasbutano/checkoutbackend/lib/mycontext"
	"github.com/gasbutano/checkoutbackend/lib/myhttp"
	"github.com/gasbutano/checkoutbackend/lib/mylog"
	"github.com/gasbutano/checkoutbackend/lib/myqueue"
	"github.com/gasbutano/checkoutbackend/lib/mystore"
	"github.com/gasbutano/checkoutbackend/lib/mytime"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and ease testing
func NewService(sentStore mystore.Store[SentRecord], queuer myqueue.TaskQueuer, sender Sender, sessionChecker SessionChecker, nower mytime.Nower) *webService {
	logger := mylog.New("smsreminder")

	return &webService{
		logger:  logger,
		service: newService(sentStore, queuer, sender, sessionChecker, nower, logger),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) {
	// Task queue callback
	router.HandleFunc("/tasks/reminder/{checkoutUID}", s.firePage()).Methods("PUT")
}

// Schedule is called by the checkout flow right after PIX creation.
func (s *webService) Schedule(c context.Context, checkoutUID string) error {
	return s.service.Schedule(c, checkoutUID)
}

func (s *webService) firePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		responseWriter := myhttp.NewWriter(s.logger)

		checkoutUID := mux.Vars(r)["checkoutUID"]

		err := s.service.fire(c, checkoutUID)
		if err != nil {
			responseWriter.WriteError(c, w, 1, err)
			return
		}

		responseWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{Message: "reminder handled"})
	}
}
