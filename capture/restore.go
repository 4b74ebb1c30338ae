package capture

import (
	"fmt"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// restoreMarkerAttr tags injected bootstrap scripts so a document is never
// given two copies.
const restoreMarkerAttr = "data-pagevault-restore"

// Fixed restoration template, substituted with the shadow placeholder
// selector and the video selector. The script is inert on documents without
// shadow placeholders or video elements and guards against double execution.
const restoreScriptTemplate = `(function(){
var SHADOW_SELECTOR=%s;
var VIDEO_SELECTOR=%s;
function restore(){
if(window.__pagevaultRestored)return;
window.__pagevaultRestored=true;
var attr=SHADOW_SELECTOR.slice(1,-1);
var hosts=document.querySelectorAll(SHADOW_SELECTOR);
for(var i=0;i<hosts.length;i++){
var host=hosts[i];
if(host.shadowRoot)continue;
host.attachShadow({mode:"open"}).innerHTML=host.getAttribute(attr);
}
var video=document.querySelector(VIDEO_SELECTOR);
if(video){
var toggle=function(){if(video.paused){video.play();}else{video.pause();}};
video.addEventListener("click",toggle);
document.addEventListener("keydown",function(ev){
if(ev.code==="Space"||ev.key===" "){ev.preventDefault();toggle();}
});
}
}
if(document.readyState==="loading"){document.addEventListener("DOMContentLoaded",restore);}else{restore();}
})();`

// RestoreScript renders the bootstrap script text.
func RestoreScript() string {
	return fmt.Sprintf(restoreScriptTemplate,
		strconv.Quote("["+ShadowDOMAttr+"]"),
		strconv.Quote("video"))
}

// InjectRestoreScript appends the restore script, and optionally extra
// script text (the data list), to the document head. Injection happens at
// most once per document.
func InjectRestoreScript(doc *Document, extra string) {
	if doc.First("script[" + restoreMarkerAttr + "]") != nil {
		return
	}
	head := findElement(doc.Root(), atom.Head)
	if head == nil {
		return
	}
	body := RestoreScript()
	if extra != "" {
		body = extra + "\n" + body
	}
	script := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     []html.Attribute{{Key: restoreMarkerAttr, Val: "1"}},
	}
	script.AppendChild(&html.Node{Type: html.TextNode, Data: body})
	head.AppendChild(script)
}
