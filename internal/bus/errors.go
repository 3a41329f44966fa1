// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package bus

import "github.com/samber/oops"

// ErrUnavailable indicates the bus is degraded or closed. Callers may treat
// it as a soft failure and continue without the bus.
var ErrUnavailable = oops.Code("BUS_UNAVAILABLE").Errorf("message bus unavailable")
