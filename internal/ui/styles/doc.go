// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles holds the palette shared by the terminal views.

All colors are Lip Gloss AdaptiveColor values, so they follow the terminal's
light or dark background.

# Colors

  - Amber marks the timeout warning and its countdown
  - Rose marks a logout or an expired session
  - Emerald marks a session that was kept alive
  - Cyan marks informational lines and key hints

# Status Indicators

Every status line carries an ASCII indicator ([OK], [X], [!], [i]) next to
its color, so state is readable without color.

# Progress

RenderProgressBar draws the padding countdown inside the warning dialog.
*/
package styles
