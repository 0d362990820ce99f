package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/plugsnip/snip-backend/api"
	"github.com/plugsnip/snip-backend/db"
	"github.com/plugsnip/snip-backend/downloads"
	"github.com/plugsnip/snip-backend/entitlement"
	"github.com/plugsnip/snip-backend/fulfillment"
	"github.com/plugsnip/snip-backend/notifications/smtp"
	"github.com/plugsnip/snip-backend/stripe"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	// define flags
	flag.StringP("host", "h", "0.0.0.0", "listen address")
	flag.IntP("port", "p", 8080, "listen port")
	flag.StringP("secret", "s", "", "API secret used to sign tokens")
	flag.String("serverURL", "http://localhost:8080", "public base URL of this server")
	flag.String("mongoURL", "", "The URL of the MongoDB server")
	flag.String("mongoDB", "snip-backend", "The name of the MongoDB database")
	flag.String("licenseEndpoint", "", "license server endpoint, leave empty to run fully unlocked")
	flag.String("licenseKey", "", "license key presented to the license server")
	flag.String("smtpServer", "", "SMTP server for purchase emails")
	flag.Int("smtpPort", 587, "SMTP server port")
	flag.String("smtpUsername", "", "SMTP username")
	flag.String("smtpPassword", "", "SMTP password")
	flag.String("emailFromAddress", "", "sender address for purchase emails")
	flag.String("emailFromName", "PlugSnip", "sender name for purchase emails")
	// parse flags
	flag.Parse()
	// initialize Viper
	viper.SetEnvPrefix("SNIP")
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		panic(err)
	}
	viper.AutomaticEnv()
	// read the configuration
	host := viper.GetString("host")
	port := viper.GetInt("port")
	secret := viper.GetString("secret")
	if secret == "" {
		log.Fatal().Msg("secret is required")
	}
	serverURL := viper.GetString("serverURL")
	mongoURL := viper.GetString("mongoURL")
	mongoDB := viper.GetString("mongoDB")
	licenseEndpoint := viper.GetString("licenseEndpoint")
	licenseKey := viper.GetString("licenseKey")
	// initialize the MongoDB database
	database, err := db.New(mongoURL, mongoDB)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create the MongoDB database")
	}
	defer database.Close()
	// create the email service
	mailService := new(smtp.Email)
	if err := mailService.New(&smtp.Config{
		FromName:     viper.GetString("emailFromName"),
		FromAddress:  viper.GetString("emailFromAddress"),
		SMTPServer:   viper.GetString("smtpServer"),
		SMTPPort:     viper.GetInt("smtpPort"),
		SMTPUsername: viper.GetString("smtpUsername"),
		SMTPPassword: viper.GetString("smtpPassword"),
	}); err != nil {
		log.Fatal().Err(err).Msg("could not create the email service")
	}
	// create the downloads service for signed asset links
	downloadsService, err := downloads.New(&downloads.Config{
		Store:     database,
		Secret:    secret,
		ServerURL: serverURL,
		LinkTTL:   72 * time.Hour,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("could not create the downloads service")
	}
	// orders are fulfilled by emailing the payer a signed download link
	fulfiller, err := fulfillment.NewMailer(downloadsService, mailService)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create the fulfillment mailer")
	}
	// create the payment service backed by the MongoDB purchase ledger
	stripeService, err := stripe.NewService(stripe.NewClient(), database, fulfiller, &stripe.MongoLedger{DB: database})
	if err != nil {
		log.Fatal().Err(err).Msg("could not create the payment service")
	}
	// premium features stay locked until the license server confirms them,
	// unless no license endpoint is configured at all
	var gate entitlement.Gate = entitlement.StaticGate(true)
	if licenseEndpoint != "" {
		gate = entitlement.NewRemoteGate(licenseEndpoint, licenseKey, 30*time.Second)
	}
	// create the local API server
	api.New(&api.Config{
		Host:      host,
		Port:      port,
		Secret:    secret,
		Gate:      gate,
		Stripe:    stripeService,
		Downloads: downloadsService,
	}).Start()
	// wait forever, as the server is running in a goroutine
	log.Info().Str("host", host).Int("port", port).Msg("server started")
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
