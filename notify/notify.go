/*
LICENSE
  Copyright (C) 2025-2026 the DojoPal project.

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

// Package notify sends administrator email notifications via the
// MailJet API. Club administrators are notified when a new account
// signs up and awaits approval, and when a student applies for a
// license.
package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
)

// Kind distinguishes notification messages for subject lines and
// rate limiting.
type Kind string

const (
	// KindSignup notifies that a new account awaits approval.
	KindSignup Kind = "signup"

	// KindLicense notifies that a student has applied for a
	// license.
	KindLicense Kind = "license"
)

const (
	defaultSender    = "noreply@dojopal.app"
	defaultRecipient = "admin@dojopal.app"
	defaultPeriod    = 5 * time.Minute
)

// Notifier represents a notifier that uses the MailJet API to send email.
type Notifier struct {
	mutex      sync.Mutex    // Lock access.
	sender     string        // Sender email address.
	recipients []string      // Recipient email addresses.
	store      TimeStore     // Notification store (optional).
	period     time.Duration // Minimum period between messages of the same kind and recipient.
	publicKey  string        // Public key for accessing the MailJet API.
	privateKey string        // Private key for accessing the MailJet API.
}

// Init initializes a notifier with the supplied options. See
// WithSender, WithRecipient, WithStore, WithPeriod and WithSecrets
// for a description of the various options. Secrets are required to
// send actual emails using the MailJet API, but can be omitted during
// testing. It is permissible to re-initialize a Notifier with
// different options, however missing options will revert to their
// defaults.
func (n *Notifier) Init(options ...Option) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	// Set default values.
	n.sender = defaultSender
	n.recipients = []string{defaultRecipient}
	n.store = nil
	n.period = defaultPeriod
	n.publicKey = ""
	n.privateKey = ""

	// Apply options.
	for i, opt := range options {
		err := opt(n)
		if err != nil {
			return fmt.Errorf("could not apply option # %d, %v", i, err)
		}
	}

	return nil
}

// Send sends an email message of the given kind to each recipient.
// With persistence, the message is sent only if a message of the
// same kind was not sent to the same recipient within the
// notification period.
func (n *Notifier) Send(ctx context.Context, kind Kind, msg string) error {
	for _, recipient := range n.recipients {
		if n.store != nil {
			sendable, err := n.store.Sendable(ctx, n.period, string(kind)+"."+recipient)
			if err != nil {
				log.Printf("store.Sendable returned error: %v", err)
			}
			if !sendable {
				log.Printf("too soon to send %s a %s message", recipient, kind)
				continue
			}
		}

		log.Printf("sending %s a %s message", recipient, kind)

		if n.publicKey != "" && n.privateKey != "" {
			clt := mailjet.NewMailjetClient(n.publicKey, n.privateKey)
			info := []mailjet.InfoMessagesV31{{
				From:     &mailjet.RecipientV31{Email: n.sender},
				To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: recipient}},
				Subject:  "DojoPal " + string(kind) + " notification",
				TextPart: msg,
			}}

			msgs := mailjet.MessagesV31{Info: info}
			_, err := clt.SendMailV31(&msgs)
			if err != nil {
				return fmt.Errorf("could not send mail: %w", err)
			}
		}

		if n.store != nil {
			err := n.store.Sent(ctx, string(kind)+"."+recipient)
			if err != nil {
				log.Printf("store.Sent returned error: %v", err)
			}
		}
	}

	return nil
}
