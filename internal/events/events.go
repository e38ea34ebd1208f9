// Package events holds post-commit hooks. Services call a hook only after
// the transaction it describes has committed, and only if it is set.
package events

import "github.com/lojf/kidstudio/internal/models"

// OnExtension is called after a registration's package has been extended.
var OnExtension func(reg models.Registration, entry models.ExtensionHistory)

// OnParticipantStatus is called after a participant changed status.
var OnParticipantStatus func(p models.EventParticipant, from models.ParticipantStatus)

// OnOverUse is called when a registration has consumed more lessons than
// its package provides.
var OnOverUse func(registrationID string, expected, consumed int)

// OnPackageEnding is called once per package window when an active
// registration's end date comes within the renewal window.
var OnPackageEnding func(reg models.Registration, daysLeft, remainingLessons int)
