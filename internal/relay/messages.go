// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package relay

// Chat-facing texts.
const (
	MsgWelcome = "Welcome to the yt-dlp relay bot!\n\n" +
		"Usage:\n" +
		"/dl <arguments>\n" +
		"/help - Show yt-dlp help\n\n" +
		"Example:\n" +
		"/dl https://youtube.com/watch?v=...\n" +
		"/dl -f bestaudio https://..."
	MsgHint         = "Use /dl <yt-dlp args> to download media."
	MsgUsage        = "Usage: /dl <args>"
	MsgQueued       = "Another download is in progress. Yours will start when it finishes."
	MsgDownloading  = "Downloading... This may take a while."
	MsgUploading    = "Download complete. Uploading..."
	MsgFetchingHelp = "Fetching help info..."
	MsgTooLarge     = "File is too big for Telegram. Please try changing format/quality options (e.g. -f 'best[filesize<50M]')."
	MsgNoResults    = "Error: the download finished but no files were found."
	MsgGenericError = "An error occurred."
)

const helpFileName = "yt-dlp-help.txt"
