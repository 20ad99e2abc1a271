package render

import (
	"encoding/json"
	"strings"

	"github.com/msalah0e/trustmap/internal/graph"
	"github.com/msalah0e/trustmap/internal/view"
)

type pageConfig struct {
	Mode    string       `json:"mode"` // "static" or "live"
	Title   string       `json:"title"`
	Theme   Theme        `json:"theme"`
	Scene   *Scene       `json:"scene,omitempty"`
	Kind    graph.Kind   `json:"kind,omitempty"`
	Handle  string       `json:"handle,omitempty"`
	Kinds   []graph.Kind `json:"kinds"`
	MinZoom float64      `json:"minZoom"`
	MaxZoom float64      `json:"maxZoom"`
	ResetMs int64        `json:"resetMs"`
}

// StaticPage returns a self-contained HTML file drawing a settled scene.
// Pan, zoom and reset run in the page; positions are fixed.
func StaticPage(s Scene, vp view.Params) string {
	return page(pageConfig{
		Mode:    "static",
		Title:   "trustmap " + string(s.Kind),
		Theme:   s.Theme,
		Scene:   &s,
		Kind:    s.Kind,
		Kinds:   graph.Kinds(),
		MinZoom: vp.MinZoom,
		MaxZoom: vp.MaxZoom,
		ResetMs: vp.ResetDuration.Milliseconds(),
	})
}

// LivePage returns the page served by `trustmap serve`. It opens a
// WebSocket to /ws, sends pointer and toggle events, and draws the scene,
// frame and transform messages it receives. kind and handle prefill the
// search form and load immediately when handle is set.
func LivePage(th Theme, kind graph.Kind, handle string, vp view.Params) string {
	return page(pageConfig{
		Mode:    "live",
		Title:   "trustmap",
		Theme:   th,
		Kind:    kind,
		Handle:  handle,
		Kinds:   graph.Kinds(),
		MinZoom: vp.MinZoom,
		MaxZoom: vp.MaxZoom,
		ResetMs: vp.ResetDuration.Milliseconds(),
	})
}

func page(cfg pageConfig) string {
	data, _ := json.Marshal(cfg)
	return strings.Replace(pageTemplate, "/*CONFIG*/null", string(data), 1)
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>trustmap</title>
<style>
*{margin:0;padding:0;box-sizing:border-box}
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',sans-serif;overflow:hidden}
canvas{display:block;touch-action:none}
#bar{position:fixed;top:12px;left:12px;right:12px;z-index:10;display:flex;gap:8px;align-items:center;flex-wrap:wrap;border-radius:12px;padding:10px 14px;font-size:13px}
#bar input,#bar select,#bar button{font:inherit;border-radius:6px;padding:4px 8px;border:1px solid rgba(128,128,128,0.4);background:transparent;color:inherit}
#bar label{display:flex;gap:4px;align-items:center}
#status{margin-left:auto;opacity:0.8}
#tooltip{position:fixed;z-index:20;pointer-events:none;display:none;border-radius:10px;padding:10px 14px;font-size:12px;max-width:280px}
</style>
</head>
<body>
<div id="bar">
  <form id="search"><input id="handle" placeholder="handle or 0x address" size="22"> <select id="kind"></select> <button>Explore</button></form>
  <span id="rings"></span>
  <span id="sentiments"></span>
  <button id="reset" type="button">Reset view</button>
  <button id="full" type="button">Fullscreen</button>
  <span id="status"></span>
</div>
<div id="tooltip"></div>
<canvas id="canvas"></canvas>
<script>
"use strict";
const CFG=/*CONFIG*/null;
const live=CFG.mode==="live";
let theme=CFG.theme,scene=CFG.scene,pos={},T={x:0,y:0,k:1},hover=null,fullscreen=false,anim=null;
const $=id=>document.getElementById(id);
const canvas=$("canvas"),ctx=canvas.getContext("2d"),images={};
let W=0,H=0,ws=null;

function applyTheme(){
  document.body.style.background=theme.background;document.body.style.color=theme.text;
  for(const el of [$("bar"),$("tooltip")]){el.style.background=theme.panel;el.style.border="1px solid "+theme.ring}
}
applyTheme();
document.title=CFG.title;
for(const k of CFG.kinds){const o=document.createElement("option");o.value=k;o.textContent=k;$("kind").appendChild(o)}
if(CFG.kind)$("kind").value=CFG.kind;
if(CFG.handle)$("handle").value=CFG.handle;
if(!live)$("search").style.display="none";

function send(msg){if(ws&&ws.readyState===1)ws.send(JSON.stringify(msg))}
function setStatus(s){$("status").textContent=s||""}

function sizes(){
  return{container:{width:window.innerWidth,height:window.innerHeight},window:{width:window.innerWidth,height:window.innerHeight}};
}
function resize(){
  const vp=scene&&scene.viewport&&scene.viewport.width>0?scene.viewport:{width:window.innerWidth,height:window.innerHeight};
  W=canvas.width=fullscreen?window.innerWidth:Math.min(window.innerWidth,vp.width);
  H=canvas.height=fullscreen?window.innerHeight:Math.max(vp.height,window.innerHeight-80);
  if(live)send(Object.assign({type:"resize"},sizes()));
}
window.addEventListener("resize",resize);

function setScene(s){
  scene=s;theme=s.theme||theme;applyTheme();
  if(s.positions){pos={};for(const p of s.positions)pos[p.nodeKey]=p}
  renderToggles();resize();
}

function renderToggles(){
  const rings=$("rings");rings.innerHTML="";
  if(!scene||!live)return;
  const shown=new Set(scene.shown);
  for(const r of scene.rings){
    const l=document.createElement("label"),c=document.createElement("input");
    c.type="checkbox";c.checked=shown.has(r);
    c.onchange=()=>send({type:"toggleRing",ring:r,on:c.checked});
    l.appendChild(c);l.appendChild(document.createTextNode("ring "+r));rings.appendChild(l);
  }
  const sents=$("sentiments");sents.innerHTML="";
  if(!scene.sentiments)return;
  for(const s of ["positive","neutral","negative"]){
    const l=document.createElement("label"),c=document.createElement("input");
    c.type="checkbox";c.checked=!!scene.sentiments[s];
    c.onchange=()=>send({type:"toggleSentiment",sentiment:s});
    l.appendChild(c);l.appendChild(document.createTextNode(s));sents.appendChild(l);
  }
}


function img(url){
  if(!url)return null;
  if(!images[url]){const i=new Image();i.crossOrigin="anonymous";i.src=url;images[url]=i}
  const i=images[url];return i.complete&&i.naturalWidth>0?i:null;
}

function toScene(sx,sy){return[(sx-T.x)/T.k,(sy-T.y)/T.k]}

function draw(){
  ctx.setTransform(1,0,0,1,0,0);ctx.fillStyle=theme.background;ctx.fillRect(0,0,W,H);
  if(!scene)return;
  if(anim){
    const t=Math.min(1,(performance.now()-anim.start)/CFG.resetMs);
    const e=t<0.5?4*t*t*t:1-Math.pow(-2*t+2,3)/2;
    T={x:anim.from.x+(anim.to.x-anim.from.x)*e,y:anim.from.y+(anim.to.y-anim.from.y)*e,k:anim.from.k+(anim.to.k-anim.from.k)*e};
    if(t>=1)anim=null;
  }
  ctx.setTransform(T.k,0,0,T.k,T.x,T.y);
  const cx=scene.viewport.width/2,cy=scene.viewport.height/2;
  ctx.strokeStyle=theme.ring;ctx.lineWidth=1/T.k;
  for(const g of scene.guides||[]){ctx.beginPath();ctx.arc(cx,cy,g.radius,0,Math.PI*2);ctx.stroke()}
  const byKey={};for(const n of scene.nodes)byKey[n.key]=n;
  for(const e of scene.edges){
    const a=pos[e.source],b=pos[e.target],nb=byKey[e.target],na=byKey[e.source];
    if(!a||!b||!nb||!na)continue;
    const hl=hover&&(hover.key===e.source||hover.key===e.target);
    ctx.strokeStyle=hl?theme.highlight:e.color;ctx.lineWidth=e.width;
    ctx.setLineDash(e.dashed?[6,4]:[]);
    ctx.beginPath();ctx.moveTo(a.x,a.y);ctx.lineTo(b.x,b.y);ctx.stroke();ctx.setLineDash([]);
    const ang=Math.atan2(b.y-a.y,b.x-a.x),r=nb.radius+3,tx=b.x-Math.cos(ang)*r,ty=b.y-Math.sin(ang)*r;
    ctx.beginPath();ctx.moveTo(tx,ty);ctx.lineTo(tx-8*Math.cos(ang-0.35),ty-8*Math.sin(ang-0.35));ctx.lineTo(tx-8*Math.cos(ang+0.35),ty-8*Math.sin(ang+0.35));
    ctx.closePath();ctx.fillStyle=hl?theme.highlight:e.color;ctx.fill();
    if(hl&&e.label){ctx.font="10px sans-serif";ctx.fillStyle=theme.highlight;ctx.textAlign="center";ctx.fillText(e.label,(a.x+b.x)/2,(a.y+b.y)/2-6)}
  }
  for(const n of scene.nodes){
    const p=pos[n.key]||{x:cx,y:cy};
    ctx.beginPath();ctx.arc(p.x,p.y,n.radius,0,Math.PI*2);ctx.fillStyle=n.fill;ctx.fill();
    const i=img(n.avatar);
    if(i){ctx.save();ctx.beginPath();ctx.arc(p.x,p.y,n.radius-2,0,Math.PI*2);ctx.clip();ctx.drawImage(i,p.x-n.radius,p.y-n.radius,n.radius*2,n.radius*2);ctx.restore()}
    ctx.lineWidth=n.root?3:(hover===n?2:1);ctx.strokeStyle=hover===n?theme.highlight:n.stroke;ctx.stroke();
    ctx.font=(n.root?"bold ":"")+"11px sans-serif";ctx.fillStyle=theme.text;ctx.textAlign="center";
    ctx.fillText(n.label,p.x,p.y+n.radius+13);
    if(n.sublabel){ctx.fillStyle=theme.muted;ctx.font="9px sans-serif";ctx.fillText(n.sublabel,p.x,p.y+n.radius+24)}
  }
}
function loop(){draw();requestAnimationFrame(loop)}

function nodeAt(sx,sy){
  if(!scene)return null;
  const[x,y]=toScene(sx,sy);
  for(let i=scene.nodes.length-1;i>=0;i--){
    const n=scene.nodes[i],p=pos[n.key];if(!p)continue;
    if((p.x-x)*(p.x-x)+(p.y-y)*(p.y-y)<=n.radius*n.radius)return n;
  }
  return null;
}

let drag=null,pan=null,moved=false;
canvas.addEventListener("mousedown",e=>{
  moved=false;const n=nodeAt(e.offsetX,e.offsetY);
  if(n){drag=n;canvas.style.cursor="grabbing";if(live)send({type:"dragStart",key:n.key,x:e.offsetX,y:e.offsetY});return}
  pan={x:e.offsetX,y:e.offsetY};canvas.style.cursor="grabbing";anim=null;
  if(live)send({type:"panStart",x:e.offsetX,y:e.offsetY});
});
canvas.addEventListener("mousemove",e=>{
  moved=true;
  if(drag){
    if(live)send({type:"dragMove",x:e.offsetX,y:e.offsetY});
    else{const[x,y]=toScene(e.offsetX,e.offsetY);pos[drag.key]={nodeKey:drag.key,x:x,y:y}}
    return;
  }
  if(pan){
    if(live)send({type:"pan",x:e.offsetX,y:e.offsetY});
    else{T.x+=e.offsetX-pan.x;T.y+=e.offsetY-pan.y}
    pan={x:e.offsetX,y:e.offsetY};return;
  }
  hover=nodeAt(e.offsetX,e.offsetY);
  const tt=$("tooltip");
  if(hover){tt.style.display="block";tt.style.left=(e.clientX+14)+"px";tt.style.top=(e.clientY+14)+"px";
    tt.textContent=hover.label+(hover.handle?" @"+hover.handle:"")+" | level "+hover.level+" | "+hover.role+(hover.score?" | score "+hover.score:"")}
  else tt.style.display="none";
});
window.addEventListener("mouseup",()=>{
  if(drag){
    if(live){send({type:"dragEnd"});if(!moved&&drag.handle&&!drag.root)load(drag.handle)}
    drag=null;
  }
  if(pan){if(live)send({type:"panEnd"});pan=null}
  canvas.style.cursor="grab";
});
canvas.addEventListener("dblclick",e=>e.preventDefault());
canvas.addEventListener("wheel",e=>{
  e.preventDefault();anim=null;
  const f=Math.exp(-e.deltaY*0.002);
  if(live){send({type:"zoom",factor:f,x:e.offsetX,y:e.offsetY});return}
  const k=Math.max(CFG.minZoom,Math.min(CFG.maxZoom,T.k*f)),[x,y]=toScene(e.offsetX,e.offsetY);
  T={x:e.offsetX-x*k,y:e.offsetY-y*k,k:k};
},{passive:false});

$("reset").onclick=()=>{
  if(live){send({type:"reset"});return}
  const to=W<640?{x:W*0.2,y:H*0.2,k:0.6}:{x:0,y:0,k:1};
  if(!anim&&T.x===to.x&&T.y===to.y&&T.k===to.k)return;
  if(!anim)anim={from:Object.assign({},T),to:to,start:performance.now()};
};
$("full").onclick=()=>{
  fullscreen=!fullscreen;
  if(fullscreen&&document.documentElement.requestFullscreen)document.documentElement.requestFullscreen().catch(()=>{});
  if(!fullscreen&&document.fullscreenElement)document.exitFullscreen();
  if(live)send(Object.assign({type:"fullscreen",on:fullscreen},sizes()));
  resize();
};

function load(handle){
  $("handle").value=handle;
  send({type:"load",kind:$("kind").value,handle:handle});
}
$("search").onsubmit=e=>{e.preventDefault();const h=$("handle").value.trim();if(h)load(h)};

function connect(){
  ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"/ws");
  ws.onopen=()=>{resize();if(CFG.handle)load(CFG.handle)};
  ws.onmessage=ev=>{
    const m=JSON.parse(ev.data);
    switch(m.type){
    case "scene":setScene(m.data);break;
    case "frame":for(const p of m.data.positions)pos[p.nodeKey]=p;break;
    case "transform":T=m.data;break;
    case "status":setStatus(m.data.message);break;
    }
  };
  ws.onclose=()=>{setStatus("disconnected, retrying");setTimeout(connect,2000)};
}

if(live)connect();else setScene(scene);
resize();loop();
</script>
</body>
</html>
`
