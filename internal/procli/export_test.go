// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package procli

var UAClientConfPath = &uaclientConfPath
