// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the chatbot terminal views.
//
// Colors adapt to light and dark terminals. NewTheme(true) forces plain
// output for NO_COLOR and non-terminal sessions; status text always carries
// an ASCII marker such as [OK] or [X].
package styles
