package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
)

var ErrUnknownVariant = errors.New("unknown shader variant")

// Variant is one selectable fragment shader over the shared quad.
type Variant struct {
	Name     string
	Fragment string
}

var variants = map[string]Variant{
	"pulse":   {Name: "pulse", Fragment: pulseFragSrc},
	"voice":   {Name: "voice", Fragment: voiceFragSrc},
	"fractal": {Name: "fractal", Fragment: fractalFragSrc},
}

func LookupVariant(name string) (Variant, error) {
	v, ok := variants[name]
	if !ok {
		return Variant{}, fmt.Errorf("%w %q (have %s)", ErrUnknownVariant, name, strings.Join(VariantNames(), ", "))
	}
	return v, nil
}

func VariantNames() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Full-screen quad: clip-space positions straight through.
const quadVertSrc = `#version 410 core

layout(location = 0) in vec2 a_position;

out vec2 v_uv;

void main() {
    v_uv = a_position * 0.5 + 0.5;
    gl_Position = vec4(a_position, 0.0, 1.0);
}
` + "\x00"

// Concentric rings that breathe on the beat and fade in over the transition.
const pulseFragSrc = `#version 410 core

uniform vec2 u_resolution;
uniform float u_time;
uniform float u_beatTime;
uniform float u_beatPhase;
uniform bool u_audioStarted;
uniform float u_transitionProgress;

in vec2 v_uv;
out vec4 FragColor;

void main() {
    vec2 p = (gl_FragCoord.xy - 0.5 * u_resolution) / min(u_resolution.x, u_resolution.y);
    float r = length(p);

    float swell = 0.25 + 0.15 * u_beatPhase;
    float ring = smoothstep(0.02, 0.0, abs(r - swell - 0.05 * (1.0 - u_beatTime)));
    float rings = 0.5 + 0.5 * sin(40.0 * r - 6.0 * u_time);
    rings *= exp(-3.0 * r) * (0.3 + 0.7 * u_beatPhase);

    vec3 idle = vec3(0.08, 0.06, 0.12) * (1.0 - r);
    vec3 col = vec3(0.9, 0.3, 0.6) * ring + vec3(0.2, 0.5, 1.0) * rings;
    float mixAmt = u_audioStarted ? u_transitionProgress : 0.0;
    FragColor = vec4(mix(idle, col, mixAmt), 1.0);
}
` + "\x00"

// The pulse visual plus a speech-driven halo.
const voiceFragSrc = `#version 410 core

uniform vec2 u_resolution;
uniform float u_time;
uniform float u_beatTime;
uniform float u_beatPhase;
uniform bool u_audioStarted;
uniform float u_transitionProgress;
uniform float u_speechPhase;
uniform bool u_isSpeaking;

in vec2 v_uv;
out vec4 FragColor;

void main() {
    vec2 p = (gl_FragCoord.xy - 0.5 * u_resolution) / min(u_resolution.x, u_resolution.y);
    float r = length(p);
    float a = atan(p.y, p.x);

    float swell = 0.25 + 0.15 * u_beatPhase;
    float ring = smoothstep(0.02, 0.0, abs(r - swell - 0.05 * (1.0 - u_beatTime)));

    float wobble = 0.04 * u_speechPhase * sin(8.0 * a + 5.0 * u_time);
    float halo = smoothstep(0.06, 0.0, abs(r - 0.42 - wobble)) * u_speechPhase;
    vec3 haloCol = u_isSpeaking ? vec3(0.3, 1.0, 0.7) : vec3(0.2, 0.6, 0.5);

    vec3 idle = vec3(0.08, 0.06, 0.12) * (1.0 - r);
    vec3 col = vec3(0.9, 0.3, 0.6) * ring + haloCol * halo;
    float mixAmt = u_audioStarted ? u_transitionProgress : 0.0;
    FragColor = vec4(mix(idle, col, mixAmt), 1.0);
}
` + "\x00"

// Escape-time Mandelbrot with beat-modulated colour.
const fractalFragSrc = `#version 410 core

uniform vec2 u_resolution;
uniform float u_time;
uniform float u_beatPhase;
uniform float u_transitionProgress;
uniform vec2 u_center;
uniform float u_zoom;
uniform int u_maxIterations;

in vec2 v_uv;
out vec4 FragColor;

void main() {
    vec2 p = (gl_FragCoord.xy - 0.5 * u_resolution) / u_resolution.y;
    vec2 c = u_center + p * (3.0 / u_zoom);
    vec2 z = vec2(0.0);
    int i = 0;
    for (; i < u_maxIterations; i++) {
        z = vec2(z.x * z.x - z.y * z.y, 2.0 * z.x * z.y) + c;
        if (dot(z, z) > 4.0) {
            break;
        }
    }
    if (i >= u_maxIterations) {
        FragColor = vec4(0.0, 0.0, 0.0, 1.0);
        return;
    }
    float t = float(i) / float(u_maxIterations);
    vec3 col = 0.5 + 0.5 * cos(6.2831 * (t + vec3(0.0, 0.33, 0.67)) + 0.5 * u_time);
    col *= 0.6 + 0.4 * u_beatPhase;
    FragColor = vec4(col * u_transitionProgress, 1.0);
}
` + "\x00"

func shaderKind(t uint32) string {
	if t == gl.VERTEX_SHADER {
		return "vertex"
	}
	return "fragment"
}

// infoLog reads a shader or program info log through the matching getters.
func infoLog(id uint32, getiv func(uint32, uint32, *int32), getLog func(uint32, int32, *int32, *uint8)) string {
	var n int32
	getiv(id, gl.INFO_LOG_LENGTH, &n)
	if n <= 0 {
		return "no info log"
	}
	buf := make([]byte, n+1)
	getLog(id, n, nil, &buf[0])
	return strings.TrimRight(string(buf), "\x00\n")
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var ok int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &ok)
	if ok == gl.FALSE {
		msg := infoLog(shader, gl.GetShaderiv, gl.GetShaderInfoLog)
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile %s shader: %s", shaderKind(shaderType), msg)
	}
	return shader, nil
}

// linkProgram builds a program from NUL-terminated sources. The shader
// objects are detached and deleted once linked.
func linkProgram(vertSrc, fragSrc string) (uint32, error) {
	var shaders [2]uint32
	for i, src := range []struct {
		text string
		kind uint32
	}{{vertSrc, gl.VERTEX_SHADER}, {fragSrc, gl.FRAGMENT_SHADER}} {
		id, err := compileShader(src.text, src.kind)
		if err != nil {
			for _, prev := range shaders[:i] {
				gl.DeleteShader(prev)
			}
			return 0, err
		}
		shaders[i] = id
	}

	program := gl.CreateProgram()
	for _, id := range shaders {
		gl.AttachShader(program, id)
	}
	gl.LinkProgram(program)
	for _, id := range shaders {
		gl.DetachShader(program, id)
		gl.DeleteShader(id)
	}

	var ok int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &ok)
	if ok == gl.FALSE {
		msg := infoLog(program, gl.GetProgramiv, gl.GetProgramInfoLog)
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("link program: %s", msg)
	}
	return program, nil
}
