/*
AUTHORS
  Maya Clarke <maya@dojopal.app>
  Tom Ashworth <tom@dojopal.app>

LICENSE
  Copyright (C) 2025-2026 the DojoPal project.

  This file is part of DojoPal. DojoPal is free software: you can
  redistribute it and/or modify it under the terms of the GNU
  General Public License as published by the Free Software
  Foundation, either version 3 of the License, or (at your option)
  any later version.

  DojoPal is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  along with DojoPal in gpl.txt.  If not, see
  <http://www.gnu.org/licenses/>.
*/

// DojoPal is a cloud service managing martial arts club memberships:
// account sign-up with administrative approval, student rosters,
// grading histories and license applications.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"

	"github.com/dojopal/cloud/auth"
	"github.com/dojopal/cloud/datastore"
	"github.com/dojopal/cloud/notify"
	"github.com/dojopal/cloud/validate"
)

// Project constants.
const (
	projectID = "dojopal"
	version   = "v0.1.0"

	// defaultSignupCode gates sign-up when DOJOPAL_SIGNUP_CODE is
	// not set. Clubs receive the current code out of band.
	defaultSignupCode = "WKC2006"
)

// service defines the properties of our web service.
type service struct {
	setupMutex sync.Mutex
	store      datastore.Store
	auth       auth.Service
	notifier   *notify.Notifier
	validator  *validator.Validate
	signupCode string
	debug      bool
	standalone bool
	storePath  string
}

// app is an instance of our service.
var app *service = &service{}

func main() {
	// Optionally load environment variables from a .env file.
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Warnf("could not load .env file: %v", err)
	}

	defaultPort := 8080
	v := os.Getenv("PORT")
	if v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			defaultPort = i
		}
	}

	var host string
	var port int
	flag.BoolVar(&app.debug, "debug", false, "Run in debug mode.")
	flag.BoolVar(&app.standalone, "standalone", false, "Run in standalone mode.")
	flag.StringVar(&host, "host", "localhost", "Host we run on in standalone mode")
	flag.IntVar(&port, "port", defaultPort, "Port we listen on in standalone mode")
	flag.StringVar(&app.storePath, "filestore", "store", "File store path")
	flag.Parse()

	// Perform one-time setup or bail.
	ctx := context.Background()
	app.setup(ctx)

	srv := app.newApp()
	log.Infof("DojoPal %s listening on %s:%d", version, host, port)
	log.Fatal(srv.Listen(fmt.Sprintf("%s:%d", host, port)))
}

// setup executes per-instance one-time warmup and is used to
// initialize the service. Any errors are considered fatal.
func (svc *service) setup(ctx context.Context) {
	svc.setupMutex.Lock()
	defer svc.setupMutex.Unlock()

	if svc.store != nil {
		return
	}

	var err error
	if svc.standalone {
		log.Info("running in standalone mode")
		svc.store, err = datastore.NewStore(ctx, "file", projectID, svc.storePath)
	} else {
		log.Info("running in cloud mode")
		svc.store, err = datastore.NewStore(ctx, "cloud", projectID, "")
	}
	if err != nil {
		log.Fatalf("could not set up datastore: %v", err)
	}

	if svc.standalone {
		secret := os.Getenv("DOJOPAL_JWT_SECRET")
		if secret == "" {
			log.Warn("DOJOPAL_JWT_SECRET not set; sessions will not survive restarts")
			secret = strconv.FormatInt(int64(os.Getpid()), 36) + "-ephemeral"
		}
		svc.auth = auth.NewLocalService(svc.store, []byte(secret))
	} else {
		apiKey := os.Getenv("FIREBASE_API_KEY")
		if apiKey == "" {
			log.Fatal("FIREBASE_API_KEY required in cloud mode")
		}
		svc.auth = auth.NewIdentityToolkit(apiKey)
	}

	svc.signupCode = os.Getenv("DOJOPAL_SIGNUP_CODE")
	if svc.signupCode == "" {
		svc.signupCode = defaultSignupCode
	}

	svc.notifier = &notify.Notifier{}
	opts := []notify.Option{notify.WithStore(notify.NewTimeStore(svc.store))}
	if v := os.Getenv("DOJOPAL_ADMIN_EMAIL"); v != "" {
		opts = append(opts, notify.WithRecipient(v))
	}
	pub, priv := os.Getenv("MAILJET_PUBLIC_KEY"), os.Getenv("MAILJET_PRIVATE_KEY")
	if pub != "" && priv != "" {
		opts = append(opts, notify.WithSecrets(map[string]string{
			"mailjetPublicKey":  pub,
			"mailjetPrivateKey": priv,
		}))
	} else {
		log.Warn("MailJet keys not set; admin notifications will be logged only")
	}
	err = svc.notifier.Init(opts...)
	if err != nil {
		log.Fatalf("could not set up notifier: %v", err)
	}

	log.Info("set up datastore, auth and notifier")
}

// newApp constructs the fiber application and registers all routes.
// The request validator carries the custom field rules so request
// types can be checked against their validate tags.
func (svc *service) newApp() *fiber.App {
	svc.validator = validator.New()
	err := validate.RegisterValidations(svc.validator)
	if err != nil {
		log.Fatalf("could not register validations: %v", err)
	}

	srv := fiber.New(fiber.Config{
		AppName:      "DojoPal " + version,
		ErrorHandler: errorHandler,
	})

	if svc.debug {
		srv.Use(func(c *fiber.Ctx) error {
			log.Debugf("%s %s", c.Method(), c.OriginalURL())
			return c.Next()
		})
	}

	v1 := srv.Group("/api/v1")

	v1.Post("/auth/code", svc.authorizationCodeHandler)
	v1.Post("/auth/signup", svc.signupHandler)
	v1.Post("/auth/signin", svc.signinHandler)
	v1.Post("/auth/signout", svc.signoutHandler)

	v1.Get("/profile", svc.profileHandler)
	v1.Put("/account", svc.accountSettingsHandler)

	v1.Get("/students", svc.listStudentsHandler)
	v1.Post("/students", svc.addStudentHandler)
	v1.Put("/students/:id", svc.updateStudentHandler)
	v1.Delete("/students/:id", svc.deleteStudentHandler)
	v1.Post("/students/:id/grades", svc.addGradeHandler)
	v1.Post("/students/:id/license", svc.applyForLicenseHandler)

	return srv
}

// errorHandler renders errors as JSON envelopes.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		msg = e.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// errorOption modifies an error response before it is returned.
type errorOption func(*fiber.Error)

// withStatus sets the HTTP status of the error response.
func withStatus(status int) errorOption {
	return func(e *fiber.Error) {
		e.Code = status
	}
}

// logAndReturnError logs msg and returns it as a fiber error,
// defaulting to internal server error.
func logAndReturnError(c *fiber.Ctx, msg string, opts ...errorOption) error {
	e := fiber.NewError(fiber.StatusInternalServerError, msg)
	for _, opt := range opts {
		opt(e)
	}
	if e.Code >= fiber.StatusInternalServerError {
		log.Error(msg)
	} else {
		log.Info(msg)
	}
	return e
}
