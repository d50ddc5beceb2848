package api

import (
	"fmt"
	"html"
)

const indexPage = `<!doctype html>
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>DocLens</title>
<style>
body {
    font-family: -apple-system, BlinkMacSystemFont, sans-serif;
    padding: 20px;
    background: #f9f9f9;
    margin: 0;
}
h2 {
    color: #1e88e5;
    text-align: center;
}
input, button {
    width: 100%;
    padding: 14px;
    margin: 8px 0;
    border: 1px solid #ccc;
    border-radius: 10px;
    box-sizing: border-box;
}
button {
    background: #1e88e5;
    color: white;
    font-weight: bold;
    border: none;
}
.buttons {
    display: grid;
    gap: 8px;
}
</style>
<h2>DocLens Lite</h2>
<form method=post action=/process enctype=multipart/form-data>
  <input type=file name=file accept=".pdf,.jpg,.jpeg,.png" required>
  <div class="buttons">
    <button type=submit name=format value=docx>Word (.docx)</button>
    <button type=submit name=format value=xlsx>Excel (.xlsx)</button>
    <button type=submit name=format value=pdf>PDF</button>
  </div>
</form>
`

// NoTablesMessage is shown when a spreadsheet is requested but nothing tabular was found
const NoTablesMessage = "No tables found"

func messageFragment(text string) string {
	return fmt.Sprintf(`<h3 style="color:red; text-align:center;">%s</h3>`, html.EscapeString(text))
}

func noTablesFragment() string {
	return messageFragment(NoTablesMessage)
}

func errorFragment(message string) string {
	return messageFragment("Error: " + message)
}
