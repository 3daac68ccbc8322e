package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/gasbutano/checkoutbackend/lib/myhttpclient"
	"github.com/gasbutano/checkoutbackend/lib/mylog"
	"github.com/gasbutano/checkoutbackend/lib/mypublisher"
	"github.com/gasbutano/checkoutbackend/lib/mypubsub"
	"github.com/gasbutano/checkoutbackend/lib/myqueue"
	"github.com/gasbutano/checkoutbackend/lib/mystore"
	"github.com/gasbutano/checkoutbackend/lib/mytime"
	"github.com/gasbutano/checkoutbackend/lib/myuuid"
	"github.com/gasbutano/checkoutbackend/services/addresslookup"
	"github.com/gasbutano/checkoutbackend/services/adstracking"
	"github.com/gasbutano/checkoutbackend/services/conversiontracking"
	"github.com/gasbutano/checkoutbackend/services/orderarchive"
	"github.com/gasbutano/checkoutbackend/services/pixcheckout"
	"github.com/gasbutano/checkoutbackend/services/pixgateway"
	"github.com/gasbutano/checkoutbackend/services/smsreminder"
)

func main() {
	c := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	router := mux.NewRouter()

	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}
	httpSender := myhttpclient.New()

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		log.Fatalf("Error creating task queue: %s", err)
	}
	defer queueCleanup()

	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		log.Fatalf("Error creating pubsub: %s", err)
	}
	defer pubsubCleanup()

	publisher, publisherCleanup, err := mypublisher.New(c, pubsub, queue, nower)
	if err != nil {
		log.Fatalf("Error creating publisher: %s", err)
	}
	defer publisherCleanup()
	publisher.RegisterEndpoints(c, router)

	sessionStore, sessionStoreCleanup, err := mystore.New[pixcheckout.PaymentSession](c)
	if err != nil {
		log.Fatalf("Error creating session store: %s", err)
	}
	defer sessionStoreCleanup()

	reportStateStore, reportStateStoreCleanup, err := mystore.New[conversiontracking.ReportState](c)
	if err != nil {
		log.Fatalf("Error creating report-state store: %s", err)
	}
	defer reportStateStoreCleanup()

	parkedStore, parkedStoreCleanup, err := mystore.New[conversiontracking.ParkedReport](c)
	if err != nil {
		log.Fatalf("Error creating parked-report store: %s", err)
	}
	defer parkedStoreCleanup()

	sentStore, sentStoreCleanup, err := mystore.New[smsreminder.SentRecord](c)
	if err != nil {
		log.Fatalf("Error creating sent-reminder store: %s", err)
	}
	defer sentStoreCleanup()

	orderStore, orderStoreCleanup, err := mystore.New[orderarchive.OrderRecord](c)
	if err != nil {
		log.Fatalf("Error creating order store: %s", err)
	}
	defer orderStoreCleanup()

	provider := os.Getenv("PAYMENT_PROVIDER")
	if provider == "" {
		provider = "blackcat"
	}
	payer, err := pixgateway.New(provider, pixgateway.Config{
		BaseURL:     os.Getenv("PAYMENT_GATEWAY_BASE_URL"),
		Credentials: os.Getenv("PAYMENT_GATEWAY_CREDENTIALS"),
		Sender:      httpSender,
	})
	if err != nil {
		log.Fatalf("Error creating payment gateway client: %s", err)
	}

	deliverer := conversiontracking.NewUtmifyDeliverer(conversiontracking.UtmifyConfig{
		BaseURL:       os.Getenv("UTMIFY_BASE_URL"),
		DefaultAPIKey: os.Getenv("UTMIFY_API_KEY"),
		APIKeyPerHost: parseKeyPerHost(os.Getenv("UTMIFY_API_KEY_PER_HOST")),
	}, httpSender)
	reporter := conversiontracking.NewService(reportStateStore, parkedStore, deliverer, nower, mylog.New("conversiontracking"))

	adsReporter := adstracking.NewGtagReporter(
		os.Getenv("GTAG_BASE_URL"),
		adstracking.NewTable(parseConversionTable(os.Getenv("GOOGLE_ADS_CONVERSIONS"))),
		httpSender,
		mylog.New("adstracking"))

	// The checkout service and the reminder service call each other, so
	// one side is wired through a handle filled in afterwards
	reminderHandle := &reminderHandle{}

	checkoutService := pixcheckout.NewService(payer, sessionStore, reporter, adsReporter, reminderHandle, publisher, nower, uuider)
	err = checkoutService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering checkout endpoints: %s", err)
	}

	smsSender := smsreminder.NewSmsdevSender(os.Getenv("SMSDEV_BASE_URL"), os.Getenv("SMSDEV_API_KEY"), httpSender)
	reminderService := smsreminder.NewService(sentStore, queue, smsSender, checkoutService, nower)
	reminderService.RegisterEndpoints(c, router)
	reminderHandle.delegate = reminderService

	archiveService := orderarchive.NewService(orderStore, pubsub, nower)
	err = archiveService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering order-archive endpoints: %s", err)
	}

	lookupService := addresslookup.NewService(addresslookup.NewViacepLookuper(os.Getenv("VIACEP_BASE_URL"), httpSender))
	lookupService.RegisterEndpoints(c, router)

	// Paid conversions that could not be delivered before the last
	// restart get one more chance
	err = reporter.RedeliverParked(c)
	if err != nil {
		log.Printf("Error redelivering parked conversion reports: %s", err)
	}

	startWebServerBlocking(router)
}

type reminderHandle struct {
	delegate pixcheckout.ReminderScheduler
}

func (h *reminderHandle) Schedule(c context.Context, checkoutUID string) error {
	if h.delegate == nil {
		return nil
	}

	return h.delegate.Schedule(c, checkoutUID)
}

// parseKeyPerHost parses "host1=key1,host2=key2".
func parseKeyPerHost(raw string) map[string]string {
	result := map[string]string{}
	for _, entry := range strings.Split(raw, ",") {
		host, key, found := strings.Cut(strings.TrimSpace(entry), "=")
		if !found || host == "" {
			continue
		}
		result[host] = key
	}

	return result
}

// parseConversionTable parses "host=conversionID|beginCheckoutLabel|purchaseLabel,...".
func parseConversionTable(raw string) map[string]adstracking.ConversionConfig {
	result := map[string]adstracking.ConversionConfig{}
	for _, entry := range strings.Split(raw, ",") {
		host, value, found := strings.Cut(strings.TrimSpace(entry), "=")
		if !found || host == "" {
			continue
		}

		fields := strings.Split(value, "|")
		config := adstracking.ConversionConfig{ConversionID: fields[0]}
		if len(fields) > 1 {
			config.BeginCheckoutLabel = fields[1]
		}
		if len(fields) > 2 {
			config.PurchaseLabel = fields[2]
		}
		result[host] = config
	}

	return result
}

func startWebServerBlocking(router *mux.Router) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting webserver on port %s (try http://localhost:%s)", port, port)
	err := http.ListenAndServe(fmt.Sprintf(":%s", port), router)
	if err != nil {
		log.Fatalf("Error starting webserver on port %s: %s", port, err)
	}
}
